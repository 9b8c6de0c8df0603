package services

import (
	"errors"
	"testing"

	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/models"
)

func TestValidateTransitionCoversEveryStatusActionPair(t *testing.T) {
	statuses := []string{
		models.StatusPending,
		models.StatusConfirmed,
		models.StatusInProgress,
		models.StatusCompleted,
		models.StatusCancelled,
		models.StatusNoShow,
	}
	actions := []string{ActionConfirm, ActionStart, ActionFinish, ActionNoShow, ActionCancel}

	allowed := map[string]map[string]string{
		models.StatusPending: {
			ActionConfirm: models.StatusConfirmed,
			ActionCancel:  models.StatusCancelled,
		},
		models.StatusConfirmed: {
			ActionStart:  models.StatusInProgress,
			ActionNoShow: models.StatusNoShow,
			ActionCancel: models.StatusCancelled,
		},
		models.StatusInProgress: {
			ActionFinish: models.StatusCompleted,
			ActionCancel: models.StatusCancelled,
		},
	}

	for _, status := range statuses {
		for _, action := range actions {
			rule, err := validateTransition(status, action)
			want, ok := allowed[status][action]
			if ok {
				if err != nil {
					t.Errorf("%s + %s: expected allowed, got %v", status, action, err)
					continue
				}
				if rule.to != want {
					t.Errorf("%s + %s: expected target %s, got %s", status, action, want, rule.to)
				}
				continue
			}
			if !errors.Is(err, ErrIllegalTransition) {
				t.Errorf("%s + %s: expected ErrIllegalTransition, got %v", status, action, err)
			}
		}
	}
}

func TestValidateTransitionRejectsUnknownAction(t *testing.T) {
	if _, err := validateTransition(models.StatusPending, "archive"); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestTerminalStatusesAcceptNoAction(t *testing.T) {
	for _, status := range []string{models.StatusCompleted, models.StatusCancelled, models.StatusNoShow} {
		for action := range transitionRules {
			if _, err := validateTransition(status, action); err == nil {
				t.Errorf("expected %s to reject %s", status, action)
			}
		}
	}
}

func TestAuthorizeActionMatrix(t *testing.T) {
	consultation := &models.Consultation{ID: 1, ClientID: 10, ProviderID: 20}

	cases := []struct {
		name    string
		role    string
		actorID int64
		action  string
		wantErr error
	}{
		{"provider confirms own", "provider", 20, ActionConfirm, nil},
		{"provider starts own", "provider", 20, ActionStart, nil},
		{"provider finishes own", "provider", 20, ActionFinish, nil},
		{"provider marks no_show", "provider", 20, ActionNoShow, nil},
		{"provider cancels own", "provider", 20, ActionCancel, nil},
		{"client cancels own", "client", 10, ActionCancel, nil},
		{"client cannot confirm", "client", 10, ActionConfirm, ErrAccessDenied},
		{"client cannot start", "client", 10, ActionStart, ErrAccessDenied},
		{"client cannot finish", "client", 10, ActionFinish, ErrAccessDenied},
		{"client cannot mark no_show", "client", 10, ActionNoShow, ErrAccessDenied},
		{"other provider denied", "provider", 99, ActionConfirm, ErrAccessDenied},
		{"other client denied", "client", 99, ActionCancel, ErrAccessDenied},
		{"admin may confirm", "admin", 99, ActionConfirm, nil},
		{"admin may cancel", "admin", 99, ActionCancel, nil},
		{"unknown action rejected", "admin", 99, "archive", ErrInvalidAction},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := authorizeAction(tc.role, tc.actorID, consultation, tc.action)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected allowed, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNormalizeActionAcceptsAliases(t *testing.T) {
	cases := map[string]string{
		"confirm":     ActionConfirm,
		"Confirmed":   ActionConfirm,
		"start":       ActionStart,
		"in_progress": ActionStart,
		"finish":      ActionFinish,
		"complete":    ActionFinish,
		"completed":   ActionFinish,
		"no_show":     ActionNoShow,
		"no-show":     ActionNoShow,
		"noshow":      ActionNoShow,
		"cancel":      ActionCancel,
		"canceled":    ActionCancel,
		"CANCELLED":   ActionCancel,
		" cancel ":    ActionCancel,
	}
	for input, want := range cases {
		got, err := normalizeAction(input)
		if err != nil {
			t.Errorf("normalizeAction(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("normalizeAction(%q) = %q, want %q", input, got, want)
		}
	}

	if _, err := normalizeAction("reschedule"); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestIsActingParticipant(t *testing.T) {
	consultation := &models.Consultation{ClientID: 10, ProviderID: 20}

	if !isActingParticipant("client", 10, consultation) {
		t.Fatal("expected client of record to be a participant")
	}
	if !isActingParticipant("provider", 20, consultation) {
		t.Fatal("expected provider of record to be a participant")
	}
	if isActingParticipant("client", 20, consultation) {
		t.Fatal("provider id under client role must not match")
	}
	if isActingParticipant("admin", 10, consultation) {
		t.Fatal("admin role is not a participant role")
	}
}
