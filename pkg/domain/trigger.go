package domain

// Point is a position in model coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub returns the vector from o to p.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Rect is an axis-aligned rectangle. Min is inclusive, Max exclusive.
type Rect struct {
	Min Point `json:"min" yaml:"min" mapstructure:"min"`
	Max Point `json:"max" yaml:"max" mapstructure:"max"`
}

// RectFromPoints builds a normalized rectangle spanning a and b.
func RectFromPoints(a, b Point) Rect {
	r := Rect{Min: a, Max: b}
	if r.Min.X > r.Max.X {
		r.Min.X, r.Max.X = r.Max.X, r.Min.X
	}
	if r.Min.Y > r.Max.Y {
		r.Min.Y, r.Max.Y = r.Max.Y, r.Min.Y
	}
	return r
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Min.X >= r.Max.X || r.Min.Y >= r.Max.Y
}

// TriggerKind identifies what woke a flow up.
type TriggerKind int

const (
	TriggerStart TriggerKind = iota
	TriggerClick
	TriggerMotion
	TriggerAnswer
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerStart:
		return "start"
	case TriggerClick:
		return "click"
	case TriggerMotion:
		return "motion"
	case TriggerAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// Trigger is the external input handed to a flow step.
type Trigger struct {
	Kind    TriggerKind
	Point   Point
	Shifted bool
	// PixDiam is the size of one screen pixel in model units, used for hit tolerance.
	PixDiam float64
	Answer  Answer
	// Preload carries untyped values for scripted invocations.
	Preload map[string]any
}

// Click builds a click trigger.
func Click(pt Point, shifted bool, pixDiam float64) Trigger {
	return Trigger{Kind: TriggerClick, Point: pt, Shifted: shifted, PixDiam: pixDiam}
}

// Motion builds a motion trigger.
func Motion(pt Point) Trigger {
	return Trigger{Kind: TriggerMotion, Point: pt}
}

// Reply builds an answer trigger.
func Reply(a Answer) Trigger {
	return Trigger{Kind: TriggerAnswer, Answer: a}
}
