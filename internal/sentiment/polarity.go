package sentiment

import (
	"strings"
	"unicode"
)

// negationWindow is how many following tokens a negator flips.
const negationWindow = 2

var apostrophes = strings.NewReplacer("'", "", "’", "")

var positiveWords = toSet(
	"amazing", "approachable", "awesome", "best", "brilliant", "clear", "engaging",
	"enjoyed", "enjoyable", "excellent", "fair", "fantastic", "good", "great", "helpful",
	"inspiring", "interesting", "knowledgeable", "love", "loved", "organized", "outstanding",
	"patient", "recommend", "supportive", "thorough", "useful", "wonderful",
)

var negativeWords = toSet(
	"awful", "bad", "boring", "confusing", "disorganized", "disrespectful", "hate", "hated",
	"horrible", "late", "lazy", "mess", "poor", "rude", "terrible", "unclear", "unfair",
	"unhelpful", "unprepared", "useless", "waste", "worst", "wrong",
)

var negators = toSet(
	"not", "no", "never", "hardly", "barely", "nothing", "cannot",
	"dont", "didnt", "doesnt", "isnt", "wasnt", "werent", "wont", "cant", "couldnt",
)

// CommentPolarity is a lexicon score of a free-text comment. A negator flips the
// polarity of the next negationWindow words. Blank comments are neutral.
func CommentPolarity(comment string) Sentiment {
	tokens := tokenize(comment)
	if len(tokens) == 0 {
		return Neutral
	}

	var score, flip int
	for _, tok := range tokens {
		if _, ok := negators[tok]; ok {
			flip = negationWindow
			continue
		}

		sign := 1
		if flip > 0 {
			sign = -1
			flip--
		}

		if _, ok := positiveWords[tok]; ok {
			score += sign
		} else if _, ok := negativeWords[tok]; ok {
			score -= sign
		}
	}

	switch {
	case score > 0:
		return Positive
	case score < 0:
		return Negative
	default:
		return Neutral
	}
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '’'
	})
	out := fields[:0]
	for _, f := range fields {
		f = apostrophes.Replace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
