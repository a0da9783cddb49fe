package ml

import "testing"

func testCorpus() []Example {
	return []Example{
		{Description: "Coffee shop", AmountCents: 525, CategoryID: "7"},
		{Description: "Grocery store run", AmountCents: 8340, CategoryID: "3"},
		{Description: "Coffee beans", AmountCents: 1299, CategoryID: "7"},
	}
}

func TestBuildVocabularyDenseIndexes(t *testing.T) {
	vocab := BuildVocabulary(testCorpus())
	if len(vocab) == 0 {
		t.Fatal("expected non-empty vocabulary")
	}
	seen := make(map[int]bool, len(vocab))
	for tok, idx := range vocab {
		if idx < 0 || idx >= len(vocab) {
			t.Fatalf("token %q has out-of-range index %d", tok, idx)
		}
		if seen[idx] {
			t.Fatalf("duplicate index %d", idx)
		}
		seen[idx] = true
	}
}

func TestBuildCategoryIndex(t *testing.T) {
	cats := BuildCategoryIndex(testCorpus())
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(cats))
	}
	for id, slot := range cats {
		got, ok := cats.CategoryAt(slot)
		if !ok || got != id {
			t.Fatalf("CategoryAt(%d) = %q, %v; want %q", slot, got, ok, id)
		}
	}
	if _, ok := cats.CategoryAt(99); ok {
		t.Fatal("expected no category at slot 99")
	}
}

func TestVectorizeLength(t *testing.T) {
	vocab := BuildVocabulary(testCorpus())
	for _, desc := range []string{"Coffee shop", "something entirely new", ""} {
		vec := Vectorize(Normalize(desc), 100, vocab)
		if len(vec) != len(vocab)+1 {
			t.Fatalf("%q: expected length %d, got %d", desc, len(vocab)+1, len(vec))
		}
	}
}

func TestVectorizeAmountSlot(t *testing.T) {
	vocab := Vocabulary{"coffe": 0}
	cases := []struct {
		cents int64
		want  float64
	}{
		{0, 0},
		{100000, 1},  // exactly 1000 units
		{250000, 1},  // saturates above 1000
		{50000, 0.5}, // 500 units
	}
	for _, tc := range cases {
		vec := Vectorize(nil, tc.cents, vocab)
		if got := vec[len(vec)-1]; got != tc.want {
			t.Fatalf("%d cents: expected amount slot %v, got %v", tc.cents, tc.want, got)
		}
	}
}

func TestVectorizeUnknownTokensIgnored(t *testing.T) {
	vocab := Vocabulary{"coffe": 0, "shop": 1}
	vec := Vectorize(Normalize("quantum flux capacitor"), 100, vocab)
	if len(vec) != 3 {
		t.Fatalf("unknown tokens must not grow the vector, got length %d", len(vec))
	}
	if vec[0] != 0 || vec[1] != 0 {
		t.Fatalf("unknown tokens must not set slots: %v", vec)
	}
}

func TestVectorizeRepeatsSetSlotOnce(t *testing.T) {
	vocab := Vocabulary{"coffe": 0}
	vec := Vectorize(Normalize("coffee coffee coffee"), 100, vocab)
	if vec[0] != 1 {
		t.Fatalf("expected presence flag 1, got %v", vec[0])
	}
}
