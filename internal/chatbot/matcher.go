package chatbot

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	pkgstrings "intranet/pkg/platform/strings"
)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a about an and are as at be been but by can could
		do does did for from get got have has how i if in into is it its me my
		of on or our please should so that the their them there they this to us
		was we were what when where which who why will with would you your`) {
		stopWords[w] = struct{}{}
	}
}

// Tokenize lower-cases message, splits on anything that is not a letter or
// digit, drops stop words and folds simple plurals. Order is kept; repeats are
// dropped.
func Tokenize(message string) []string {
	words := pkgstrings.Words(message)
	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		w = stem(w)
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
	}
	return tokens
}

func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

var (
	greetingOpeners = map[string]struct{}{
		"hi": {}, "hello": {}, "hey": {}, "hiya": {}, "howdy": {}, "yo": {}, "greetings": {}, "good": {},
	}
	greetingFillers = map[string]struct{}{
		"there": {}, "morning": {}, "afternoon": {}, "evening": {}, "all": {}, "team": {}, "bot": {},
	}
)

// IsGreeting reports whether message is only a greeting, e.g. "Hi there!" or
// "good morning".
func IsGreeting(message string) bool {
	words := pkgstrings.Words(message)
	if len(words) == 0 || len(words) > 4 {
		return false
	}
	if _, ok := greetingOpeners[words[0]]; !ok {
		return false
	}
	if words[0] == "good" && len(words) == 1 {
		return false
	}
	for _, w := range words[1:] {
		_, opener := greetingOpeners[w]
		_, filler := greetingFillers[w]
		if !opener && !filler {
			return false
		}
	}
	return true
}

// conditionEnv is the variable set available to FAQ conditions.
type conditionEnv struct {
	Message string   `expr:"message"`
	Tokens  []string `expr:"tokens"`
	Hour    int      `expr:"hour"`
	Weekday string   `expr:"weekday"`
}

func newConditionEnv(message string, tokens []string, at time.Time) conditionEnv {
	return conditionEnv{
		Message: strings.ToLower(message),
		Tokens:  tokens,
		Hour:    at.Hour(),
		Weekday: strings.ToLower(at.Weekday().String()),
	}
}

// CompileCondition checks that condition is a boolean expression over the
// chat environment.
func CompileCondition(condition string) (*vm.Program, error) {
	program, err := expr.Compile(condition, expr.Env(conditionEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition: %w", err)
	}
	return program, nil
}

// programCache holds compiled conditions keyed by source text.
type programCache struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func newProgramCache() *programCache {
	return &programCache{programs: make(map[string]*vm.Program)}
}

func (c *programCache) get(condition string) (*vm.Program, error) {
	c.mu.RLock()
	p, ok := c.programs[condition]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}
	p, err := CompileCondition(condition)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.programs[condition] = p
	c.mu.Unlock()
	return p, nil
}

// candidate is one scored FAQ.
type candidate struct {
	faq   *FAQ
	score int
}

// score is 2 per matched keyword plus 1 per question token found in the
// message. A multi-word keyword matches when all of its tokens are present.
func score(faq *FAQ, tokens map[string]struct{}) int {
	total := 0
	for _, kw := range faq.Keywords {
		kwTokens := Tokenize(kw)
		if len(kwTokens) == 0 {
			continue
		}
		hit := true
		for _, t := range kwTokens {
			if _, ok := tokens[t]; !ok {
				hit = false
				break
			}
		}
		if hit {
			total += 2
		}
	}
	for _, t := range Tokenize(faq.Question) {
		if _, ok := tokens[t]; ok {
			total++
		}
	}
	return total
}

// rank orders candidates by score, then priority, then hits.
func rank(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.faq.Priority != b.faq.Priority {
			return a.faq.Priority > b.faq.Priority
		}
		return a.faq.Hits > b.faq.Hits
	})
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
