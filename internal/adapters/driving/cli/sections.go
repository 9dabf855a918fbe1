package cli

import "github.com/editnori/psych-intake-brief-sub001/internal/core/domain"

// briefSection pairs a section spec with the query used to rank evidence
// for it.
type briefSection struct {
	spec  domain.SectionSpec
	query string
}

// briefSections is the standard intake brief outline, generated in order.
var briefSections = []briefSection{
	{
		spec: domain.SectionSpec{
			ID:       "presenting-problem",
			Title:    "Presenting Problem",
			Guidance: "Summarise the reason for referral, current symptoms and their onset, duration and severity.",
			Format:   "narrative",
		},
		query: "presenting problem chief complaint symptoms referral reason onset",
	},
	{
		spec: domain.SectionSpec{
			ID:       "psychiatric-history",
			Title:    "Psychiatric History",
			Guidance: "Cover prior diagnoses, hospitalisations, treatments tried and their outcomes, in chronological order.",
			Format:   "narrative",
		},
		query: "psychiatric history diagnosis hospitalisation admission prior treatment therapy",
	},
	{
		spec: domain.SectionSpec{
			ID:       "medical-history",
			Title:    "Medical History",
			Guidance: "List relevant medical conditions, current medications with doses, allergies and recent investigations.",
			Format:   "bullet list",
		},
		query: "medical history conditions medications dose allergies labs",
	},
	{
		spec: domain.SectionSpec{
			ID:       "substance-use",
			Title:    "Substance Use",
			Guidance: "Describe current and historical use of alcohol, tobacco and other substances, including periods of abstinence.",
			Format:   "narrative",
		},
		query: "substance use alcohol tobacco drugs abstinence sobriety intoxication withdrawal",
	},
	{
		spec: domain.SectionSpec{
			ID:       "social-history",
			Title:    "Social History",
			Guidance: "Cover living situation, relationships, employment or education, and relevant legal or financial stressors.",
			Format:   "narrative",
		},
		query: "social history living situation family employment education housing support",
	},
	{
		spec: domain.SectionSpec{
			ID:       "mental-status",
			Title:    "Mental Status Examination",
			Guidance: "Report the most recent documented mental status findings: appearance, behaviour, speech, mood, affect, thought process and content, cognition, insight and judgement.",
			Format:   "bullet list",
		},
		query: "mental status examination appearance mood affect thought cognition insight judgement",
	},
	{
		spec: domain.SectionSpec{
			ID:       "risk-assessment",
			Title:    "Risk Assessment",
			Guidance: "Address suicidal and homicidal ideation, self-harm, access to means, protective factors and any documented safety planning.",
			Format:   "narrative",
		},
		query: "risk suicidal ideation self-harm safety plan protective factors access to means",
	},
	{
		spec: domain.SectionSpec{
			ID:       "formulation",
			Title:    "Formulation and Plan",
			Guidance: "Integrate the history into a concise formulation and summarise the documented treatment plan and follow-up arrangements.",
			Format:   "narrative",
		},
		query: "formulation impression plan treatment recommendations follow-up disposition",
	},
}

// sectionByID looks up one section of the standard outline.
func sectionByID(id string) (briefSection, bool) {
	for _, s := range briefSections {
		if s.spec.ID == id {
			return s, true
		}
	}
	return briefSection{}, false
}
