package domain

// QuestionOrder is the immutable ordered sequence of questions in a session,
// with an index map for O(1) membership and position lookups.
type QuestionOrder struct {
	ids   []QuestionID
	index map[QuestionID]int
}

// NewQuestionOrder builds an order from a freshly drawn question list.
// Empty lists and duplicates fail with a QuestionOrderError.
func NewQuestionOrder(ids []QuestionID) (QuestionOrder, error) {
	return buildQuestionOrder(ids)
}

// QuestionOrderFromPersistence rebuilds an order from stored state. The same
// invariants apply: a persisted empty or duplicated order is corruption, not
// data to be trusted.
func QuestionOrderFromPersistence(ids []QuestionID) (QuestionOrder, error) {
	return buildQuestionOrder(ids)
}

func buildQuestionOrder(ids []QuestionID) (QuestionOrder, error) {
	if len(ids) == 0 {
		return QuestionOrder{}, QuestionOrderError{Reason: "question list is empty"}
	}
	copied := make([]QuestionID, len(ids))
	index := make(map[QuestionID]int, len(ids))
	for i, id := range ids {
		if _, dup := index[id]; dup {
			return QuestionOrder{}, QuestionOrderError{Reason: "duplicate question id " + id.String()}
		}
		copied[i] = id
		index[id] = i
	}
	return QuestionOrder{ids: copied, index: index}, nil
}

// Contains reports whether id is part of the order.
func (o QuestionOrder) Contains(id QuestionID) bool {
	_, ok := o.index[id]
	return ok
}

// IndexOf returns the position of id, or -1 when absent.
func (o QuestionOrder) IndexOf(id QuestionID) int {
	if i, ok := o.index[id]; ok {
		return i
	}
	return -1
}

// AllIDs returns a defensive copy preserving order.
func (o QuestionOrder) AllIDs() []QuestionID {
	out := make([]QuestionID, len(o.ids))
	copy(out, o.ids)
	return out
}

// At returns the question id at position i.
func (o QuestionOrder) At(i int) QuestionID { return o.ids[i] }

// Size returns the number of questions.
func (o QuestionOrder) Size() int { return len(o.ids) }
