package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode/utf8"

	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
	"mailboxapi/pkg/store"
)

const maxLabelNameLength = 100

var labelPalette = []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7", "#DDA0DD", "#98D8C8"}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func randomLabelColor() string {
	return labelPalette[rand.IntN(len(labelPalette))]
}

func (a *App) ListLabels(ctx context.Context, userID string) ([]domain.Label, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	labels, err := a.store.ListLabels(ctx, userID)
	if err != nil {
		return nil, storeErr("list labels", err)
	}
	return labels, nil
}

// CreateLabel adds a label. An empty color is picked from the palette.
func (a *App) CreateLabel(ctx context.Context, userID, name, color string) (domain.Label, error) {
	name, err := labelName(name)
	if err != nil {
		return domain.Label{}, err
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = randomLabelColor()
	} else if !hexColor.MatchString(color) {
		return domain.Label{}, invalid("color", "Color must be a hex value like #RRGGBB")
	}
	label := domain.Label{
		ID:        util.NewID(),
		UserID:    userID,
		Name:      name,
		Color:     strings.ToUpper(color),
		CreatedAt: a.now().UTC(),
	}
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	if err := a.store.CreateLabel(ctx, label); err != nil {
		if errors.Is(err, store.ErrDuplicateLabel) {
			return domain.Label{}, ErrLabelExists
		}
		return domain.Label{}, storeErr("create label", err)
	}
	return label, nil
}

func (a *App) DeleteLabel(ctx context.Context, userID, id string) error {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	ok, err := a.store.DeleteLabel(ctx, userID, id)
	if err != nil {
		return storeErr("delete label", err)
	}
	if !ok {
		return ErrLabelNotFound
	}
	return nil
}

// AddLabelToEmail links the named label, creating it on first use, and
// returns the updated email.
func (a *App) AddLabelToEmail(ctx context.Context, userID, emailID, name string) (domain.Email, error) {
	name, err := labelName(name)
	if err != nil {
		return domain.Email{}, err
	}
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	ok, err := a.store.AddLabelToEmail(ctx, userID, emailID, name, randomLabelColor())
	if err != nil {
		return domain.Email{}, storeErr("add label", err)
	}
	if !ok {
		return domain.Email{}, ErrEmailNotFound
	}
	email, ok, err := a.store.GetEmail(ctx, userID, emailID)
	return emailResult("get email", email, ok, err)
}

// RemoveLabelFromEmail unlinks the named label. A missing email or label is
// reported as ErrEmailNotFound.
func (a *App) RemoveLabelFromEmail(ctx context.Context, userID, emailID, name string) (domain.Email, error) {
	name, err := labelName(name)
	if err != nil {
		return domain.Email{}, err
	}
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	ok, err := a.store.RemoveLabelFromEmail(ctx, userID, emailID, name)
	if err != nil {
		return domain.Email{}, storeErr("remove label", err)
	}
	if !ok {
		return domain.Email{}, ErrEmailNotFound
	}
	email, ok, err := a.store.GetEmail(ctx, userID, emailID)
	return emailResult("get email", email, ok, err)
}

func labelName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", invalid("label", "Label is required")
	}
	if utf8.RuneCountInString(name) > maxLabelNameLength {
		return "", invalid("label", fmt.Sprintf("Label must be at most %d characters", maxLabelNameLength))
	}
	return name, nil
}
