// Package outbound renders the cargo-match notification for a paired ship
// and mails it through the graph adapter. Templates are Liquid, reloaded on
// file change, with a compiled-in default.
package outbound

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/osteele/liquid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ignite/chartermatch/internal/entity"
)

// Sender is the mail surface the composer submits to.
type Sender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// CargoLoader resolves a ship's paired cargo ids back to documents.
type CargoLoader interface {
	CargosByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*entity.Cargo, error)
}

// Config carries the operator-facing knobs.
type Config struct {
	// Recipients receive every notification. At least one is required.
	Recipients []string
	// TemplatePath points at a Liquid template file. Empty selects the
	// compiled-in default.
	TemplatePath string
}

// Composer renders and sends one notification per paired ship.
type Composer struct {
	sender       Sender
	cargos       CargoLoader
	recipients   []string
	templatePath string

	engine *liquid.Engine
	cache  sync.Map // path -> cachedTemplate
}

type cachedTemplate struct {
	mtime time.Time
	tpl   *liquid.Template
}

// New builds a composer. The Liquid engine and its filters are shared by
// every render.
func New(sender Sender, cargos CargoLoader, cfg Config) (*Composer, error) {
	if len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("no outbound recipients configured")
	}
	engine := liquid.NewEngine()
	registerFilters(engine)
	return &Composer{
		sender:       sender,
		cargos:       cargos,
		recipients:   cfg.Recipients,
		templatePath: cfg.TemplatePath,
		engine:       engine,
	}, nil
}

// ComposeAndSend loads the ship's matched cargos, renders the notification
// and mails it to every configured recipient. Errors bubble to the caller;
// the pairing in the store is never touched from here.
func (c *Composer) ComposeAndSend(ctx context.Context, ship *entity.Ship) error {
	cargos, err := c.cargos.CargosByIDs(ctx, ship.PairsWith)
	if err != nil {
		return fmt.Errorf("loading matched cargos: %w", err)
	}
	if len(cargos) == 0 {
		return fmt.Errorf("ship %q has %d pair ids but no loadable cargos", ship.Name, len(ship.PairsWith))
	}

	body, err := c.render(ship, cargos)
	if err != nil {
		return fmt.Errorf("rendering notification: %w", err)
	}
	subject := fmt.Sprintf("Cargo matches for %s", ship.Name)
	return c.sender.Send(ctx, c.recipients, subject, body)
}

func (c *Composer) render(ship *entity.Ship, cargos []*entity.Cargo) (string, error) {
	tpl, err := c.template()
	if err != nil {
		return "", err
	}
	bags := make([]map[string]interface{}, 0, len(cargos))
	for _, cargo := range cargos {
		bags = append(bags, cargoBag(cargo))
	}
	return tpl.RenderString(map[string]interface{}{
		"ship":   shipBag(ship),
		"cargos": bags,
		"email":  emailBag(&ship.Email),
	})
}

// template returns the parsed template for the configured path, re-parsing
// when the file's mtime moves, or the compiled-in default when no path is
// set.
func (c *Composer) template() (*liquid.Template, error) {
	if c.templatePath == "" {
		return c.cachedParse("", time.Time{}, func() (string, error) {
			return defaultTemplate, nil
		})
	}
	st, err := os.Stat(c.templatePath)
	if err != nil {
		return nil, fmt.Errorf("stat template: %w", err)
	}
	return c.cachedParse(c.templatePath, st.ModTime(), func() (string, error) {
		raw, err := os.ReadFile(c.templatePath)
		if err != nil {
			return "", fmt.Errorf("read template: %w", err)
		}
		return string(raw), nil
	})
}

func (c *Composer) cachedParse(path string, mtime time.Time, load func() (string, error)) (*liquid.Template, error) {
	if v, ok := c.cache.Load(path); ok {
		ct := v.(cachedTemplate)
		if ct.mtime.Equal(mtime) {
			return ct.tpl, nil
		}
	}
	raw, err := load()
	if err != nil {
		return nil, err
	}
	tpl, err := c.engine.ParseString(raw)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	c.cache.Store(path, cachedTemplate{mtime: mtime, tpl: tpl})
	return tpl, nil
}

var monthAbbrev = [...]string{
	"JAN", "FEB", "MAR", "APR", "MAY", "JUN",
	"JUL", "AUG", "SEP", "OCT", "NOV", "DEC",
}

func registerFilters(engine *liquid.Engine) {
	// Month number to charter abbreviation: {{ ship.month_int | month_name }}
	engine.RegisterFilter("month_name", func(value interface{}) string {
		var m int
		switch v := value.(type) {
		case nil:
			return ""
		case int:
			m = v
		case int64:
			m = int(v)
		case float64:
			m = int(v)
		case string:
			n, err := strconv.Atoi(v)
			if err != nil {
				return v
			}
			m = n
		default:
			return fmt.Sprintf("%v", value)
		}
		if m < 1 || m > 12 {
			return ""
		}
		return monthAbbrev[m-1]
	})

	// Tonnage with thousand separators: {{ cargo.quantity_max_int | fmt_tons }}
	engine.RegisterFilter("fmt_tons", func(value interface{}) string {
		var n int64
		switch v := value.(type) {
		case nil:
			return ""
		case int:
			n = int64(v)
		case int64:
			n = v
		case float64:
			n = int64(v)
		default:
			return fmt.Sprintf("%v", value)
		}
		str := fmt.Sprintf("%d", n)
		neg := n < 0
		if neg {
			str = str[1:]
		}
		var b strings.Builder
		for i, r := range str {
			if i > 0 && (len(str)-i)%3 == 0 {
				b.WriteRune(',')
			}
			b.WriteRune(r)
		}
		if neg {
			return "-" + b.String()
		}
		return b.String()
	})
}

// shipBag exposes the ship to the template with its storage field names, so
// operators editing the template file can work from the documents they see.
func shipBag(s *entity.Ship) map[string]interface{} {
	return map[string]interface{}{
		"name":         s.Name,
		"status":       s.Status,
		"month":        s.Month,
		"month_int":    intOrNil(s.MonthInt),
		"capacity":     s.Capacity,
		"capacity_int": intOrNil(s.CapacityInt),
		"location":     locationText(s.Location),
	}
}

func cargoBag(c *entity.Cargo) map[string]interface{} {
	return map[string]interface{}{
		"name":             c.Name,
		"quantity":         c.Quantity,
		"quantity_min_int": intOrNil(c.QuantityMinInt),
		"quantity_max_int": intOrNil(c.QuantityMaxInt),
		"month":            c.Month,
		"month_int":        intOrNil(c.MonthInt),
		"commission":       c.Commission,
		"commission_float": c.CommissionFloat,
		"location_from":    locationText(c.LocationFrom),
		"location_to":      locationText(c.LocationTo),
		"sender":           c.Email.Sender,
		"subject":          c.Email.Subject,
	}
}

func emailBag(e *entity.Email) map[string]interface{} {
	return map[string]interface{}{
		"subject":       e.Subject,
		"sender":        e.Sender,
		"recipients":    e.Recipients,
		"date_received": e.DateReceived,
	}
}

func intOrNil(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// locationText picks the most specific level the extraction produced.
func locationText(l entity.Location) string {
	for _, s := range []string{l.Port, l.Sea, l.Ocean} {
		if s != "" {
			return s
		}
	}
	return ""
}

const defaultTemplate = `Good day,

Open tonnage {{ ship.name | upcase }}{% if ship.capacity_int %} / {{ ship.capacity_int | fmt_tons }} dwt{% endif %}{% if ship.month_int %} / {{ ship.month_int | month_name }}{% endif %}{% if ship.location != "" %} / {{ ship.location }}{% endif %} matches {{ cargos | size }} cargo order{% if cargos.size != 1 %}s{% endif %}:

{% for cargo in cargos %}{{ forloop.index }}. {{ cargo.name }}{% if cargo.quantity_min_int %} / {{ cargo.quantity_min_int | fmt_tons }}{% if cargo.quantity_max_int != cargo.quantity_min_int %} - {{ cargo.quantity_max_int | fmt_tons }}{% endif %} mt{% endif %}{% if cargo.month_int %} / {{ cargo.month_int | month_name }}{% endif %} / {{ cargo.commission_float }}% comm
   {{ cargo.location_from }} -> {{ cargo.location_to }}
   via {{ cargo.sender }} ({{ cargo.subject }})
{% endfor %}
Source circular: {{ email.subject }} from {{ email.sender }} on {{ email.date_received }}
`
