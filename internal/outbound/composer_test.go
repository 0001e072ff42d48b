package outbound

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ignite/chartermatch/internal/entity"
)

type fakeSender struct {
	to      []string
	subject string
	body    string
	fail    error
	calls   int
}

func (f *fakeSender) Send(ctx context.Context, to []string, subject, body string) error {
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	f.to, f.subject, f.body = to, subject, body
	return nil
}

type fakeLoader struct {
	cargos []*entity.Cargo
	err    error
	gotIDs []primitive.ObjectID
}

func (f *fakeLoader) CargosByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*entity.Cargo, error) {
	f.gotIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	return f.cargos, nil
}

func ip(v int) *int { return &v }

func fixtureShip() *entity.Ship {
	return &entity.Ship{
		Name:        "mv ocean trader",
		Month:       "December",
		MonthInt:    ip(12),
		Capacity:    "13898 dwt",
		CapacityInt: ip(13898),
		Location:    entity.Location{Port: "Singapore"},
		PairsWith:   []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()},
		Email: entity.Email{
			Subject:      "open tonnage circular",
			Sender:       "chartering@owner.example",
			DateReceived: "2026-08-20T09:15:30Z",
		},
	}
}

func fixtureCargos() []*entity.Cargo {
	return []*entity.Cargo{
		{
			Name:            "steel coils",
			Quantity:        "25/30",
			QuantityMinInt:  ip(25000),
			QuantityMaxInt:  ip(30000),
			Month:           "December",
			MonthInt:        ip(12),
			Commission:      "2.5%",
			CommissionFloat: 2.5,
			LocationFrom:    entity.Location{Port: "Iskenderun"},
			LocationTo:      entity.Location{Port: "Rotterdam"},
			Email:           entity.Email{Subject: "cgo steel coils", Sender: "ops@broker.example"},
		},
		{
			Name:            "urea in bulk",
			Quantity:        "50000 mts",
			QuantityMinInt:  ip(50000),
			QuantityMaxInt:  ip(50000),
			CommissionFloat: entity.DefaultCommission,
			LocationFrom:    entity.Location{Sea: "Black Sea"},
			LocationTo:      entity.Location{Port: "Santos"},
			Email:           entity.Email{Subject: "urea stem", Sender: "dry@broker.example"},
		},
	}
}

func newTestComposer(t *testing.T, sender Sender, loader CargoLoader, cfg Config) *Composer {
	t.Helper()
	if len(cfg.Recipients) == 0 {
		cfg.Recipients = []string{"fixing@desk.example"}
	}
	c, err := New(sender, loader, cfg)
	require.NoError(t, err)
	return c
}

func TestComposeAndSendDefaultTemplate(t *testing.T) {
	sender := &fakeSender{}
	loader := &fakeLoader{cargos: fixtureCargos()}
	c := newTestComposer(t, sender, loader, Config{Recipients: []string{"desk@broker.example", "backup@broker.example"}})
	ship := fixtureShip()

	require.NoError(t, c.ComposeAndSend(context.Background(), ship))

	assert.Equal(t, ship.PairsWith, loader.gotIDs)
	assert.Equal(t, []string{"desk@broker.example", "backup@broker.example"}, sender.to)
	assert.Equal(t, "Cargo matches for mv ocean trader", sender.subject)

	body := sender.body
	assert.Contains(t, body, "MV OCEAN TRADER / 13,898 dwt / DEC / Singapore")
	assert.Contains(t, body, "matches 2 cargo orders")
	assert.Contains(t, body, "1. steel coils / 25,000 - 30,000 mt / DEC / 2.5% comm")
	assert.Contains(t, body, "Iskenderun -> Rotterdam")
	assert.Contains(t, body, "via ops@broker.example (cgo steel coils)")
	assert.Contains(t, body, "2. urea in bulk / 50,000 mt")
	assert.Contains(t, body, "Black Sea -> Santos")
	assert.NotContains(t, body, "50,000 - 50,000")
	assert.Contains(t, body, "Source circular: open tonnage circular from chartering@owner.example on 2026-08-20T09:15:30Z")
}

func TestComposeAndSendCustomTemplateReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notice.liquid")
	require.NoError(t, os.WriteFile(path, []byte("SHIP={{ ship.name }}"), 0o644))

	sender := &fakeSender{}
	c := newTestComposer(t, sender, &fakeLoader{cargos: fixtureCargos()[:1]}, Config{TemplatePath: path})
	ship := fixtureShip()

	require.NoError(t, c.ComposeAndSend(context.Background(), ship))
	assert.Equal(t, "SHIP=mv ocean trader", sender.body)

	require.NoError(t, os.WriteFile(path, []byte("V2 {{ ship.location }}"), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	require.NoError(t, c.ComposeAndSend(context.Background(), ship))
	assert.Equal(t, "V2 Singapore", sender.body)
}

func TestComposeAndSendMissingTemplateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.liquid")
	c := newTestComposer(t, &fakeSender{}, &fakeLoader{cargos: fixtureCargos()[:1]}, Config{TemplatePath: path})

	err := c.ComposeAndSend(context.Background(), fixtureShip())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat template")
}

func TestComposeAndSendLoaderError(t *testing.T) {
	c := newTestComposer(t, &fakeSender{}, &fakeLoader{err: errors.New("no connection")}, Config{})

	err := c.ComposeAndSend(context.Background(), fixtureShip())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading matched cargos")
}

func TestComposeAndSendNoLoadableCargos(t *testing.T) {
	c := newTestComposer(t, &fakeSender{}, &fakeLoader{}, Config{})

	err := c.ComposeAndSend(context.Background(), fixtureShip())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no loadable cargos")
}

func TestComposeAndSendSenderError(t *testing.T) {
	sender := &fakeSender{fail: errors.New("mailbox over quota")}
	c := newTestComposer(t, sender, &fakeLoader{cargos: fixtureCargos()[:1]}, Config{})

	err := c.ComposeAndSend(context.Background(), fixtureShip())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox over quota")
	assert.Equal(t, 1, sender.calls)
}

func TestNewRequiresRecipients(t *testing.T) {
	_, err := New(&fakeSender{}, &fakeLoader{}, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no outbound recipients")
}

func TestTemplateFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.liquid")
	tpl := "{{ 1 | month_name }} {{ 12 | month_name }} {{ 0 | month_name }} {{ 1500000 | fmt_tons }}"
	require.NoError(t, os.WriteFile(path, []byte(tpl), 0o644))

	sender := &fakeSender{}
	c := newTestComposer(t, sender, &fakeLoader{cargos: fixtureCargos()[:1]}, Config{TemplatePath: path})

	require.NoError(t, c.ComposeAndSend(context.Background(), fixtureShip()))
	assert.Equal(t, "JAN DEC  1,500,000", sender.body)
}
