package ml

// Vocabulary maps a stemmed token to its dense 0-based vector slot.
// Indexes are always contiguous in [0, len(vocabulary)).
type Vocabulary map[string]int

// CategoryIndex maps a category identifier to the classifier's output slot
// for that category. len(CategoryIndex) equals the output layer width.
type CategoryIndex map[string]int

// BuildVocabulary assigns a slot to every distinct stemmed token in the
// corpus, in first-seen order.
func BuildVocabulary(examples []Example) Vocabulary {
	vocab := make(Vocabulary)
	for _, ex := range examples {
		for _, tok := range Normalize(ex.Description) {
			if _, ok := vocab[tok]; !ok {
				vocab[tok] = len(vocab)
			}
		}
	}
	return vocab
}

// BuildCategoryIndex assigns an output slot to every distinct category in
// the corpus, in first-seen order.
func BuildCategoryIndex(examples []Example) CategoryIndex {
	index := make(CategoryIndex)
	for _, ex := range examples {
		if ex.CategoryID == "" {
			continue
		}
		if _, ok := index[ex.CategoryID]; !ok {
			index[ex.CategoryID] = len(index)
		}
	}
	return index
}

// CategoryAt returns the category identifier occupying the given output slot.
func (c CategoryIndex) CategoryAt(slot int) (string, bool) {
	for id, idx := range c {
		if idx == slot {
			return id, true
		}
	}
	return "", false
}

// amountFeature scales an amount into [0, 1]: amounts of 1000 currency
// units or more saturate at 1.
func amountFeature(amountCents int64) float64 {
	units := float64(amountCents) / 100.0
	f := units / 1000.0
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// Vectorize builds the feature vector for a normalized token sequence and
// an amount: len(vocab) binary token-presence slots followed by one scaled
// amount slot. Repeated tokens set a slot once; tokens absent from the
// vocabulary are ignored, so vectorization is always well-defined against a
// fixed model even for unseen words.
func Vectorize(tokens []string, amountCents int64, vocab Vocabulary) []float64 {
	vec := make([]float64, len(vocab)+1)
	for _, tok := range tokens {
		if slot, ok := vocab[tok]; ok {
			vec[slot] = 1
		}
	}
	vec[len(vec)-1] = amountFeature(amountCents)
	return vec
}
