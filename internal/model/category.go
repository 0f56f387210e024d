package model

import "time"

// Category groups plans for browsing. Plans and categories are many-to-many.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// PlanCount is filled by listing queries only.
	PlanCount int `json:"plan_count,omitempty"`
}

// PlanFAQ is a question and answer attached to a plan.
type PlanFAQ struct {
	ID          int64     `json:"id"`
	PlanID      int64     `json:"plan_id"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	PackContext string    `json:"pack_context,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}

// FAQPackContexts are the accepted pack_context values. Empty means all packs.
var FAQPackContexts = []string{"", "free", "pro", "ultimate"}

// DefaultFAQs returns the generic questions shown when a plan has none.
func (p *HousePlan) DefaultFAQs() []PlanFAQ {
	ref := p.DisplayCode()
	qa := [][2]string{
		{
			"Can I modify this house plan?",
			"Yes. The plan with reference " + ref + " can be adapted by a local architect or engineer to meet local codes and site conditions. We recommend working with a licensed professional for permit-ready changes.",
		},
		{
			"What files are included in each package?",
			"Free Pack: PDF sampler. Pro Pack: full PDF set. Ultimate Pack: editable CAD files where available (DWG). See the pack comparison above for exact contents.",
		},
		{
			"Is this plan suitable for my country or climate?",
			"Plans are designed with flexible details; suitability depends on local codes, climate, and site. Reference the plan code when consulting a local engineer: " + ref,
		},
		{
			"Can an architect or engineer adapt this plan?",
			"Absolutely. Provide them with the plan files (reference " + ref + ") and they can prepare permit-ready drawings and calculations as required locally.",
		},
		{
			"How do I receive the files after purchase?",
			"Files are delivered as downloads immediately after purchase through Gumroad. Gumroad also emails a download link for convenience.",
		},
		{
			"What is the difference between Pack Free, Pro, and Ultimate?",
			"Free: preview PDF. Pro: complete PDF documentation. Ultimate: editable CAD datasets for contractors and consultants. Choose the pack matching your stage and local team needs.",
		},
		{
			"Can I use this plan for construction immediately?",
			"The plan is a strong starting point, but you must verify local codes, obtain permits, and possibly adapt details; consult a local architect or engineer before construction.",
		},
		{
			"Can I request customization for this plan?",
			"Yes, we offer customization services. Quote requests should reference " + ref + " so we can estimate time and cost accurately.",
		},
	}

	faqs := make([]PlanFAQ, 0, len(qa))
	for i, item := range qa {
		faqs = append(faqs, PlanFAQ{PlanID: p.ID, Question: item[0], Answer: item[1], Position: i})
	}
	return faqs
}
