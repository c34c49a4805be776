package taxonomy

const DefaultVersion = "v1"

// Category ids of the built-in questionnaire.
const (
	CategoryInstruction = "instruction"
	CategoryContent     = "content"
	CategoryEngagement  = "engagement"
	CategoryAssessment  = "assessment"
)

// Composite scores of the retired four-score evaluation form.
const (
	LegacyClarity      = "clarity"
	LegacyUsefulness   = "usefulness"
	LegacyEngagement   = "engagement"
	LegacyOrganization = "organization"
)

// Default returns the built-in v1 questionnaire.
func Default() *Taxonomy {
	t, err := New(DefaultVersion, defaultCategories(), defaultQuestions(), DefaultLegacyFanOut())
	if err != nil {
		panic("taxonomy: built-in definition is invalid: " + err.Error())
	}
	return t
}

// DefaultLegacyFanOut is the successor table for the four-score form. A legacy score is
// copied onto every question listed under it; each question has a single source.
func DefaultLegacyFanOut() map[string][]string {
	return map[string][]string{
		LegacyClarity:      {"instr_explains", "content_objectives", "assess_criteria"},
		LegacyUsefulness:   {"instr_available", "content_relevance", "content_materials", "assess_feedback"},
		LegacyEngagement:   {"instr_enthusiasm", "instr_respect", "engage_participation", "engage_questions", "engage_interest"},
		LegacyOrganization: {"instr_prepared", "content_structure", "assess_alignment"},
	}
}

func defaultCategories() []Category {
	return []Category{
		{
			ID:          CategoryInstruction,
			Name:        "Instructor Effectiveness",
			Description: "How well the instructor teaches and supports the class.",
			QuestionIDs: []string{"instr_explains", "instr_prepared", "instr_enthusiasm", "instr_available", "instr_respect"},
		},
		{
			ID:          CategoryContent,
			Name:        "Course Content & Organization",
			Description: "Clarity, structure and relevance of the course material.",
			QuestionIDs: []string{"content_objectives", "content_structure", "content_relevance", "content_materials"},
		},
		{
			ID:          CategoryEngagement,
			Name:        "Student Engagement",
			Description: "How the course invites participation and interest.",
			QuestionIDs: []string{"engage_participation", "engage_questions", "engage_interest"},
		},
		{
			ID:          CategoryAssessment,
			Name:        "Assessment & Feedback",
			Description: "Fairness of grading and quality of feedback.",
			QuestionIDs: []string{"assess_criteria", "assess_feedback", "assess_alignment"},
		},
	}
}

func defaultQuestions() []Question {
	return []Question{
		{ID: "instr_explains", CategoryID: CategoryInstruction, ShortLabel: "Clear explanations", Text: "The instructor explains concepts clearly."},
		{ID: "instr_prepared", CategoryID: CategoryInstruction, ShortLabel: "Preparedness", Text: "The instructor comes to class prepared."},
		{ID: "instr_enthusiasm", CategoryID: CategoryInstruction, ShortLabel: "Enthusiasm", Text: "The instructor shows enthusiasm for the subject."},
		{ID: "instr_available", CategoryID: CategoryInstruction, ShortLabel: "Availability", Text: "The instructor is available for consultation outside class."},
		{ID: "instr_respect", CategoryID: CategoryInstruction, ShortLabel: "Respect", Text: "The instructor treats students with respect."},

		{ID: "content_objectives", CategoryID: CategoryContent, ShortLabel: "Stated objectives", Text: "Course objectives are clearly stated."},
		{ID: "content_structure", CategoryID: CategoryContent, ShortLabel: "Logical sequence", Text: "Lessons follow a logical sequence."},
		{ID: "content_relevance", CategoryID: CategoryContent, ShortLabel: "Relevance", Text: "Course material is relevant and up to date."},
		{ID: "content_materials", CategoryID: CategoryContent, ShortLabel: "Materials", Text: "Learning materials support the lessons."},

		{ID: "engage_participation", CategoryID: CategoryEngagement, ShortLabel: "Participation", Text: "Students are encouraged to participate."},
		{ID: "engage_questions", CategoryID: CategoryEngagement, ShortLabel: "Questions welcomed", Text: "Questions are welcomed and answered."},
		{ID: "engage_interest", CategoryID: CategoryEngagement, ShortLabel: "Interest", Text: "The course stimulates my interest in the subject."},

		{ID: "assess_criteria", CategoryID: CategoryAssessment, ShortLabel: "Grading criteria", Text: "Grading criteria are communicated clearly."},
		{ID: "assess_feedback", CategoryID: CategoryAssessment, ShortLabel: "Feedback", Text: "Feedback on work is timely and useful."},
		{ID: "assess_alignment", CategoryID: CategoryAssessment, ShortLabel: "Alignment", Text: "Assessments align with what was taught."},
	}
}
