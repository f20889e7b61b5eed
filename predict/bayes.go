package predict

import (
	"math"
	"sort"

	"github.com/jbrukh/bayesian"
)

// Classifier is the swappable prediction strategy: train on labeled
// examples, predict an account from features. Implementations degrade
// rather than fail: Predict reports ok=false instead of erroring.
type Classifier interface {
	Train(examples []Example) error
	Predict(f Features) (account string, ok bool)
}

// Bayes is a naive bayes Classifier over feature tokens. Classes are the
// target accounts, sorted so equal scores resolve to the lexicographically
// smallest account and training stays deterministic.
type Bayes struct {
	classifier *bayesian.Classifier
	// MinMargin is the log-score lead the best class needs over the
	// runner-up before the prediction is trusted. Zero accepts ties,
	// which then resolve to the smallest account name.
	MinMargin float64
}

func NewBayes() *Bayes {
	return &Bayes{}
}

func (b *Bayes) Train(examples []Example) error {
	uniqueAccounts := make(map[string]bool)
	for _, ex := range examples {
		uniqueAccounts[ex.Account] = true
	}
	// the classifier needs at least two classes; below that there is
	// nothing to discriminate and prediction stays cold
	if len(uniqueAccounts) < 2 {
		b.classifier = nil
		return nil
	}

	names := make([]string, 0, len(uniqueAccounts))
	for name := range uniqueAccounts {
		names = append(names, name)
	}
	sort.Strings(names)

	classes := make([]bayesian.Class, len(names))
	for i, name := range names {
		classes[i] = bayesian.Class(name)
	}

	classifier := bayesian.NewClassifier(classes...)
	for _, ex := range examples {
		classifier.Learn(ex.Features.Tokens(), bayesian.Class(ex.Account))
	}
	b.classifier = classifier
	return nil
}

func (b *Bayes) Predict(f Features) (string, bool) {
	if b.classifier == nil {
		return "", false
	}

	high1 := math.Inf(-1)
	high2 := math.Inf(-1)
	matchIdx := 0
	scores, _, _ := b.classifier.LogScores(f.Tokens())
	for j, score := range scores {
		if score > high1 {
			high2 = high1
			high1 = score
			matchIdx = j
		} else if score > high2 {
			high2 = score
		}
	}
	if math.IsInf(high1, -1) || high1-high2 < b.MinMargin {
		return "", false
	}
	return string(b.classifier.Classes[matchIdx]), true
}
