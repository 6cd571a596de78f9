package headless_test

import (
	"context"
	"testing"

	"github.com/aretw0/tapestry/pkg/adapters/headless"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControls_Records(t *testing.T) {
	c := headless.NewControls()
	var _ ports.Controls = c

	c.DisableControls(ports.MaskMenus)
	c.DisableControls(ports.MaskToolbar)
	assert.Equal(t, ports.MaskMenus|ports.MaskToolbar, c.Disabled())
	c.EnableControls()
	assert.Equal(t, ports.MaskNone, c.Disabled())

	c.PopBubbles()
	assert.Equal(t, 0, c.Bubbles(), "pop never goes negative")
	c.PushBubbles()
	assert.Equal(t, 1, c.Bubbles())

	c.CancelModals(ports.CancelSkipPullDowns)
	assert.Equal(t, []ports.CancelMask{ports.CancelSkipPullDowns}, c.CancelledModals())
}

func TestDialogs_QueueThenFallback(t *testing.T) {
	d := headless.NewDialogs(domain.Answer{Choice: domain.AnswerOK}, domain.Answer{Choice: domain.AnswerNo})
	var _ ports.Dialogs = d
	ctx := context.Background()

	a, err := d.Ask(ctx, domain.Feedback{Message: "first"})
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerNo, a.Choice)

	a, err = d.Ask(ctx, domain.Feedback{Message: "second"})
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerOK, a.Choice)
	assert.Len(t, d.Asked(), 2)
}
