package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"math/rand/v2"
	"strings"
	"time"

	"crono-backend/internal/activity/domain"
)

const dueDateLayout = "02/01/2006, 15:04:05"

var defaultQuotes = []string{
	"A persistência realiza o impossível.",
	"Feito é melhor que perfeito.",
	"Pequenos passos todos os dias levam a grandes resultados.",
	"Disciplina é a ponte entre metas e conquistas.",
	"O segredo de progredir é começar.",
	"Não espere por motivação, crie hábitos.",
	"Cada tarefa concluída é uma vitória.",
	"Foco no progresso, não na perfeição.",
}

var bodyTemplate = template.Must(template.New("notification").Parse(
	`{{if .Reminder}}<p>Este é um lembrete sobre sua atividade.</p>{{else}}<p>Sua atividade está expirada.</p>{{end}}
<p><strong>Cartão:</strong> {{.Card}}</p>
<p><strong>Atividade:</strong> {{.Activity}}</p>
<p><strong>Data:</strong> {{.Due}}</p>
{{if .Recurring}}<p><strong>Esta é uma atividade recorrente.</strong></p>
{{end}}<hr/>
<p><em>{{.Quote}}</em></p>`))

// Composer renders scanner notifications. Dates are shown in loc.
type Composer struct {
	loc    *time.Location
	quotes []string
	pick   func(n int) int
}

// ComposerOption customises a Composer
type ComposerOption func(*Composer)

// WithQuotes replaces the motivational quote pool
func WithQuotes(quotes []string) ComposerOption {
	return func(c *Composer) {
		if len(quotes) > 0 {
			c.quotes = quotes
		}
	}
}

// WithPicker replaces random quote selection, for deterministic output
func WithPicker(pick func(n int) int) ComposerOption {
	return func(c *Composer) { c.pick = pick }
}

func NewComposer(loc *time.Location, opts ...ComposerOption) *Composer {
	if loc == nil {
		loc = time.UTC
	}
	c := &Composer{loc: loc, quotes: defaultQuotes, pick: rand.IntN}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds the message for a due activity. cardTitle is the resolved
// card label and may be empty.
func (c *Composer) Compose(owner domain.Owner, a *domain.Activity, cardTitle string) (Message, error) {
	kind := KindOverdue
	prefix := "Atividade expirada"
	if a.Reminder {
		kind = KindReminder
		prefix = "Lembrete"
	}
	title := a.DisplayTitle()

	data := struct {
		Reminder  bool
		Card      string
		Activity  string
		Due       string
		Recurring bool
		Quote     string
	}{
		Reminder:  a.Reminder,
		Card:      orDash(cardTitle),
		Activity:  orDash(strings.TrimSpace(firstNonEmpty(a.Title, a.Name))),
		Due:       c.FormatDue(a.DueDate),
		Recurring: a.Recurring,
		Quote:     c.quote(),
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render notification body: %w", err)
	}

	var text string
	if a.Reminder {
		text = fmt.Sprintf("Lembrete: %s (%s)", title, data.Due)
	} else {
		text = fmt.Sprintf("Sua atividade %q está expirada desde %s", title, data.Due)
	}

	return Message{
		Kind:       kind,
		OwnerID:    owner.ID,
		ActivityID: a.ID,
		To:         owner.Email,
		Subject:    fmt.Sprintf("%s: %s", prefix, title),
		HTML:       buf.String(),
		Text:       text,
		CardTitle:  cardTitle,
		DueDate:    a.DueDate,
		Recurring:  a.Recurring,
	}, nil
}

// FormatDue renders t in the composer's zone, or "Sem data" when absent
func (c *Composer) FormatDue(t *time.Time) string {
	if t == nil {
		return "Sem data"
	}
	return t.In(c.loc).Format(dueDateLayout)
}

func (c *Composer) quote() string {
	return c.quotes[c.pick(len(c.quotes))]
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
