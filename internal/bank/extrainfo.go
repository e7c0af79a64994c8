package bank

import "fmt"

// LinkIssue records a question that more than one info block claims.
// The later block wins; the issue is informational only.
type LinkIssue struct {
	Number   int `json:"number"`
	Question int `json:"question_index"`
	Previous int `json:"previous_info_index"`
	Replaced int `json:"info_index"`
}

func (i LinkIssue) String() string {
	return fmt.Sprintf("question %d (index %d) claimed by info blocks %d and %d; keeping %d",
		i.Number, i.Question, i.Previous, i.Replaced, i.Replaced)
}

// Link maps question index -> index of the info block that annotates it.
// References resolve against question numbers, not positions; numbers that
// match no question are ignored.
func Link(questions []Question) (map[int]int, []LinkIssue) {
	byNumber := make(map[int]int, len(questions))
	for i, q := range questions {
		if q.IsInfo() || q.Number == nil {
			continue
		}
		if _, seen := byNumber[*q.Number]; !seen {
			byNumber[*q.Number] = i
		}
	}

	links := map[int]int{}
	var issues []LinkIssue
	for i, q := range questions {
		if !q.IsInfo() {
			continue
		}
		for _, n := range q.ForQuestions {
			qi, ok := byNumber[n]
			if !ok {
				continue
			}
			if prev, ok := links[qi]; ok && prev != i {
				issues = append(issues, LinkIssue{Number: n, Question: qi, Previous: prev, Replaced: i})
			}
			links[qi] = i
		}
	}
	return links, issues
}
