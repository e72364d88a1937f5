package negotiation

import (
	"fmt"
	"strings"
)

// stagePrompt builds the text-generation prompt for the session's current
// stage. Content must stay consistent with the deal parameters so the
// fallback template and generated text are interchangeable.
func stagePrompt(s *Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a professional B2B %s message for the %s stage of a supplier negotiation.\n",
		s.Strategy.Style, s.Stage)
	fmt.Fprintf(&b, "Product: %s. Quantity: %d units. Target price: %.2f per unit.\n",
		s.Deal.Product, s.Deal.Quantity, s.Deal.TargetPrice)
	fmt.Fprintf(&b, "Buyer: %s (%s company, %s urgency).\n",
		s.Buyer.CompanyName, s.Buyer.CompanySize, s.Buyer.Urgency)
	fmt.Fprintf(&b, "Payment terms are fixed: %s. Do not offer deferred or partial payment.\n",
		s.Deal.PaymentTerms)

	if len(s.Strategy.SellingPoints) > 0 {
		fmt.Fprintf(&b, "Emphasize: %s.\n", strings.Join(s.Strategy.SellingPoints, ", "))
	}

	b.WriteString("Return only the message body, no subject line.")
	return b.String()
}

// stageTemplate is the deterministic fallback used whenever text
// generation fails or is unavailable. Keyed by the current stage.
func stageTemplate(s *Session) string {
	switch s.Stage {
	case StageInitialContact:
		return fmt.Sprintf(
			"Hello %s, we are reaching out regarding a supply arrangement for %s. "+
				"We can provide %d units with reliable lead times and would welcome a "+
				"conversation about your requirements.",
			s.Buyer.CompanyName, s.Deal.Product, s.Deal.Quantity)
	case StageQualification:
		return fmt.Sprintf(
			"To prepare an accurate proposal for %s, could you confirm your expected "+
				"order volume, delivery destination and any quality certifications you require? "+
				"Our supplier holds: %s.",
			s.Deal.Product, strings.Join(s.Supplier.Certifications, ", "))
	case StageProposal:
		return fmt.Sprintf(
			"Please find our proposal for %d units of %s at %.2f per unit, delivery "+
				"within %d days. Payment terms: %s.",
			s.Deal.Quantity, s.Deal.Product, s.Deal.TargetPrice,
			s.Deal.DeliveryTimelineDays, paymentTermsLabel(s.Deal.PaymentTerms))
	case StageNegotiation:
		return fmt.Sprintf(
			"We appreciate your feedback on the proposal for %s. We have some "+
				"flexibility on volume commitments and delivery scheduling, though our "+
				"payment terms remain %s.",
			s.Deal.Product, paymentTermsLabel(s.Deal.PaymentTerms))
	case StageClosing:
		return fmt.Sprintf(
			"We are ready to finalize the agreement for %d units of %s at the agreed "+
				"terms. Please confirm so we can issue the order documents and payment "+
				"instructions (%s).",
			s.Deal.Quantity, s.Deal.Product, paymentTermsLabel(s.Deal.PaymentTerms))
	default:
		return fmt.Sprintf("Thank you for working with us on %s.", s.Deal.Product)
	}
}

func paymentTermsLabel(t PaymentTerms) string {
	switch t {
	case PaymentFullAdvance:
		return "full advance payment"
	case PaymentLetterOfCredit:
		return "confirmed letter of credit"
	default:
		return string(t)
	}
}
