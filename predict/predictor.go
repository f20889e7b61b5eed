package predict

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/howeyc/reconcile"
)

// Predictor combines user rules, a classifier and a prediction cache. It
// never fails: with no rule, no training data or malformed features it
// returns the placeholder account.
type Predictor struct {
	rules      *RuleSet
	classifier Classifier
	cache      *gocache.Cache
}

// New builds a predictor around a classifier. A nil classifier predicts
// only from rules; a nil rule set applies no rules.
func New(classifier Classifier, rules *RuleSet) *Predictor {
	if rules == nil {
		rules = &RuleSet{}
	}
	return &Predictor{
		rules:      rules,
		classifier: classifier,
		cache:      gocache.New(30*time.Minute, time.Hour),
	}
}

// Train retrains the classifier and drops all cached predictions.
func (p *Predictor) Train(examples []Example) error {
	p.cache.Flush()
	if p.classifier == nil {
		return nil
	}
	return p.classifier.Train(examples)
}

// Predict returns the most likely account for the features, or the
// placeholder account when neither rules nor the classifier produce one.
func (p *Predictor) Predict(f Features) string {
	if account, ok := p.rules.Match(f.Description); ok {
		return account
	}
	key := f.Key()
	if hit, ok := p.cache.Get(key); ok {
		return hit.(string)
	}
	account := reconcile.FIXMEAccount
	if p.classifier != nil {
		if predicted, ok := p.classifier.Predict(f); ok {
			account = predicted
		}
	}
	p.cache.Set(key, account, gocache.DefaultExpiration)
	return account
}
