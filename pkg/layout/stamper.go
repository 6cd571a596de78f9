// Package layout is the geometry service the engine calls from background jobs.
//
// The real rubber-stamping algorithms live outside the engine; Stamper is the
// narrow interface to them. CopyStamper is the built-in implementation that
// copies root positions into a target model.
package layout

import (
	"context"
	"sort"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/model"
)

// Options tunes a stamping pass. Field names double as preload keys.
type Options struct {
	// OnlyMissing keeps nodes that already have a position.
	OnlyMissing bool `mapstructure:"only_missing" json:"only_missing"`
	// Offset shifts every stamped position.
	Offset domain.Point `mapstructure:"offset" json:"offset"`
}

// Report summarizes one stamping pass.
type Report struct {
	ModelID string   `json:"model_id"`
	Placed  int      `json:"placed"`
	Kept    int      `json:"kept"`
	Skipped []string `json:"skipped,omitempty"`
}

// Progress is the slice of a job's monitor a stamper reports through.
type Progress interface {
	Checkpoint() error
	Update(fraction float64)
}

// Stamper computes a new layout for target from the root layout.
// Implementations must treat every argument as read-only.
type Stamper interface {
	Stamp(ctx context.Context, root model.Layout, target model.Model, current model.Layout, opts Options, p Progress) (model.Layout, Report, error)
}

// CopyStamper places each target node where the root has it.
type CopyStamper struct{}

func (CopyStamper) Stamp(ctx context.Context, root model.Layout, target model.Model, current model.Layout, opts Options, p Progress) (model.Layout, Report, error) {
	out := current.Clone()
	out.ModelID = target.ID
	rep := Report{ModelID: target.ID}

	ids := make([]string, 0, len(target.Nodes))
	for id := range target.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		if err := p.Checkpoint(); err != nil {
			return model.Layout{}, Report{}, err
		}
		if err := ctx.Err(); err != nil {
			return model.Layout{}, Report{}, err
		}
		if _, have := current.Positions[id]; have && opts.OnlyMissing {
			rep.Kept++
		} else if pos, ok := root.Positions[id]; ok {
			out.Positions[id] = pos.Add(opts.Offset)
			rep.Placed++
		} else {
			rep.Skipped = append(rep.Skipped, id)
		}
		p.Update(float64(i+1) / float64(len(ids)))
	}
	p.Update(1)
	return out, rep, nil
}

// Centroid returns the mean position of the given nodes in l.
func Centroid(l model.Layout, ids []string) (domain.Point, bool) {
	var sum domain.Point
	n := 0
	for _, id := range ids {
		if p, ok := l.Positions[id]; ok {
			sum = sum.Add(p)
			n++
		}
	}
	if n == 0 {
		return domain.Point{}, false
	}
	return domain.Point{X: sum.X / float64(n), Y: sum.Y / float64(n)}, true
}

// AlignTo translates target so the centroid of the nodes it shares with
// reference matches reference's centroid of the same nodes.
func AlignTo(reference, target model.Layout) (model.Layout, bool) {
	var shared []string
	for id := range target.Positions {
		if _, ok := reference.Positions[id]; ok {
			shared = append(shared, id)
		}
	}
	sort.Strings(shared)
	rc, ok := Centroid(reference, shared)
	if !ok {
		return target.Clone(), false
	}
	tc, _ := Centroid(target, shared)
	delta := rc.Sub(tc)
	out := target.Clone()
	for id, p := range out.Positions {
		out.Positions[id] = p.Add(delta)
	}
	return out, delta != (domain.Point{})
}
