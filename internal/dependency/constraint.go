package dependency

import (
	"time"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/model"
)

// Span is a proposed or resolved start/end pair.
type Span struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Shift returns the span moved by d.
func (s Span) Shift(d time.Duration) Span {
	return Span{Start: s.Start.Add(d), End: s.End.Add(d)}
}

// Equal reports whether both ends match.
func (s Span) Equal(o Span) bool {
	return s.Start.Equal(o.Start) && s.End.Equal(o.End)
}

// SpanOf returns the current span of t.
func SpanOf(t *model.Task) Span {
	return Span{Start: t.Start, End: t.End}
}

// Resolution is the outcome of clamping a proposal.
type Resolution struct {
	Span
	Pinned   bool // a hard lock decided at least one end
	Clamped  bool // the result differs from the proposal
	Conflict bool // reconciliation left a bound violated
}

// bounds holds the tightest active value per constraint type.
type bounds struct {
	mustStart, mustFinish *time.Time
	snet, snlt            *time.Time
	fnet, fnlt            *time.Time
}

func tighten(slot **time.Time, date time.Time, later bool) {
	switch {
	case *slot == nil:
		d := date
		*slot = &d
	case later && date.After(**slot), !later && date.Before(**slot):
		d := date
		*slot = &d
	}
}

func collect(rules []model.Rule) bounds {
	var b bounds
	for _, r := range rules {
		if !r.Active {
			continue
		}
		switch r.Type {
		case domain.MustStartOn:
			tighten(&b.mustStart, r.Date, true)
		case domain.MustFinishOn:
			tighten(&b.mustFinish, r.Date, true)
		case domain.StartNoEarlierThan:
			tighten(&b.snet, r.Date, true)
		case domain.StartNoLaterThan:
			tighten(&b.snlt, r.Date, false)
		case domain.FinishNoEarlierThan:
			tighten(&b.fnet, r.Date, true)
		case domain.FinishNoLaterThan:
			tighten(&b.fnlt, r.Date, false)
		case domain.TargetStart, domain.TargetEnd, domain.SegmentWork:
			// advisory
		}
	}
	return b
}

func clamp(t time.Time, lower, upper *time.Time) time.Time {
	if lower != nil && t.Before(*lower) {
		t = *lower
	}
	if upper != nil && t.After(*upper) {
		t = *upper
	}
	return t
}

// ApplyConstraint clamps proposed through rules. Hard locks win outright.
// Otherwise the soft bounds of the driven end are checked first, the other end
// follows to preserve duration, and a single reconciliation pass re-checks
// the first end. Deadline and segment rules never clamp.
func ApplyConstraint(rules []model.Rule, proposed Span, drive domain.Endpoint) Resolution {
	b := collect(rules)
	dur := proposed.Duration()
	res := Resolution{Span: proposed}

	switch {
	case b.mustStart != nil && b.mustFinish != nil:
		res.Span = Span{Start: *b.mustStart, End: *b.mustFinish}
		res.Pinned = true
	case b.mustStart != nil:
		res.Span = Span{Start: *b.mustStart, End: b.mustStart.Add(dur)}
		res.Pinned = true
	case b.mustFinish != nil:
		res.Span = Span{Start: b.mustFinish.Add(-dur), End: *b.mustFinish}
		res.Pinned = true
	default:
		res.Span, res.Conflict = softClamp(b, proposed, drive)
	}

	res.Clamped = !res.Span.Equal(proposed)
	return res
}

func softClamp(b bounds, s Span, drive domain.Endpoint) (Span, bool) {
	dur := s.Duration()
	clampStart := func(t time.Time) time.Time { return clamp(t, b.snet, b.snlt) }
	clampEnd := func(t time.Time) time.Time { return clamp(t, b.fnet, b.fnlt) }

	first, second := clampStart, clampEnd
	fromFirst := func(t time.Time) Span { return Span{Start: t, End: t.Add(dur)} }
	fromSecond := func(t time.Time) Span { return Span{Start: t.Add(-dur), End: t} }
	firstOf := func(sp Span) time.Time { return sp.Start }
	secondOf := func(sp Span) time.Time { return sp.End }
	if drive == domain.EndpointEnd {
		first, second = clampEnd, clampStart
		fromFirst, fromSecond = fromSecond, fromFirst
		firstOf, secondOf = secondOf, firstOf
	}

	s = fromFirst(first(firstOf(s)))
	if v := second(secondOf(s)); !v.Equal(secondOf(s)) {
		s = fromSecond(v)
	}

	// reconciliation: one re-check of the first end, then yield
	if v := first(firstOf(s)); !v.Equal(firstOf(s)) {
		s = fromFirst(v)
		return s, !second(secondOf(s)).Equal(secondOf(s))
	}
	return s, false
}

// AncestorRules maps the constraint rules of summary ancestors onto bounds
// that bind descendants. Start locks and start floors become
// StartNoEarlierThan; finish locks and finish ceilings become
// FinishNoLaterThan. Other rules do not propagate down.
func AncestorRules(ancestors []*model.Task) []model.Rule {
	var out []model.Rule
	for _, a := range ancestors {
		if !a.IsSummary() {
			continue
		}
		for _, r := range a.Rules {
			if !r.Active {
				continue
			}
			switch r.Type {
			case domain.MustStartOn, domain.StartNoEarlierThan:
				out = append(out, model.Rule{Type: domain.StartNoEarlierThan, Date: r.Date, Active: true})
			case domain.MustFinishOn, domain.FinishNoLaterThan:
				out = append(out, model.Rule{Type: domain.FinishNoLaterThan, Date: r.Date, Active: true})
			}
		}
	}
	return out
}
