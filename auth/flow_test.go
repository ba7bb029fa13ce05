package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/askall/browser"
	"github.com/BaSui01/askall/browser/browsertest"
)

var creds = Credentials{Identity: "user@example.com", Secret: "hunter2"}

func loginPage() *browsertest.Page {
	return browsertest.NewPage().
		SetVisible("identity-field", true).
		SetVisible("secret-field", true).
		SetVisible("next", true)
}

func TestLogin_Succeeded(t *testing.T) {
	page := loginPage()
	flow := NewFlow(zaptest.NewLogger(t))

	got := flow.Login(context.Background(), page, creds)

	assert.Equal(t, OutcomeSucceeded, got)
	assert.Equal(t, []string{
		"fill:identity-field=user@example.com",
		"click:next",
		"wait:secret-field",
		"fill:secret-field=hunter2",
		"click:next",
	}, page.Calls())
	assert.Zero(t, page.Count("wait_navigation"))
}

func TestLogin_SecretMissing_ManualCompleted(t *testing.T) {
	page := loginPage().SetVisible("secret-field", false)
	flow := NewFlow(zaptest.NewLogger(t))

	got := flow.Login(context.Background(), page, creds)

	assert.Equal(t, OutcomeManualCompleted, got)
	assert.Equal(t, 1, page.Count("wait_navigation"))
	assert.Zero(t, page.Count("fill:secret-field"))
}

func TestLogin_ManualTimedOut(t *testing.T) {
	page := loginPage().SetVisible("secret-field", false)
	page.NavigationErr = browser.ErrNavigationTimeout
	flow := NewFlow(zaptest.NewLogger(t))

	assert.Equal(t, OutcomeManualTimedOut, flow.Login(context.Background(), page, creds))
}

func TestLogin_IdentityStepFails(t *testing.T) {
	page := loginPage().Fail("fill:identity-field", errors.New("detached"))
	flow := NewFlow(zaptest.NewLogger(t))

	got := flow.Login(context.Background(), page, creds)

	assert.Equal(t, OutcomeManualCompleted, got)
	assert.Zero(t, page.Count("click:next"))
}

func TestLogin_SecretSubmitFails(t *testing.T) {
	page := loginPage()
	page.Fail("fill:secret-field", errors.New("boom"))
	page.NavigationErr = context.DeadlineExceeded
	flow := NewFlow(zaptest.NewLogger(t))

	assert.Equal(t, OutcomeManualTimedOut, flow.Login(context.Background(), page, creds))
}

func TestLogin_NoIdentitySkipsToManual(t *testing.T) {
	page := loginPage()
	flow := NewFlow(nil)

	got := flow.Login(context.Background(), page, Credentials{})

	assert.Equal(t, OutcomeManualCompleted, got)
	assert.Equal(t, []string{"wait_navigation"}, page.Calls())
}

func TestWithTimeouts_KeepsDefaultsForZero(t *testing.T) {
	flow := NewFlow(nil, WithTimeouts(Timeouts{ManualWait: time.Second}))
	assert.Equal(t, 5*time.Second, flow.Timeouts().SecretProbe)
	assert.Equal(t, time.Second, flow.Timeouts().ManualWait)
	assert.Equal(t, 5*time.Second, flow.PopupWait())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "succeeded", OutcomeSucceeded.String())
	assert.Equal(t, "manual_completed", OutcomeManualCompleted.String())
	assert.Equal(t, "manual_timed_out", OutcomeManualTimedOut.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestCredentialsString_HidesSecret(t *testing.T) {
	assert.NotContains(t, creds.String(), "hunter2")
	assert.True(t, Credentials{Secret: "x"}.Empty())
}
