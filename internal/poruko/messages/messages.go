// Package messages holds every user-facing string the bot sends, with
// Spanish defaults matching the group's humour. Operators can override any
// of them through a YAML file; overrides are validated against an embedded
// JSON schema so a typoed key fails loudly at startup instead of silently
// falling back.
package messages

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"text/template"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

// Messages is the full catalogue. Entries are Go text/template strings;
// the data each one receives is documented on the field.
type Messages struct {
	// Scoring replies.
	Late           string `yaml:"late"`            // .Name
	AlreadyScored  string `yaml:"already_scored"`  // .Name
	Score          string `yaml:"score"`           // .Medal .Name .Points
	PrecisionBonus string `yaml:"precision_bonus"` // appended to Score
	StreakBonus    string `yaml:"streak_bonus"`    // .Streak
	NewSeason      string `yaml:"new_season"`

	// Ranking and achievements.
	RankingHeader     string `yaml:"ranking_header"`
	RankingEntry      string `yaml:"ranking_entry"` // .Position .Name .Points .Title
	RankingEmpty      string `yaml:"ranking_empty"`
	Achievements      string `yaml:"achievements"` // .List
	AchievementsEmpty string `yaml:"achievements_empty"`

	// Summary flow.
	CooldownWait    string `yaml:"cooldown_wait"` // .Minutes
	SummaryThinking string `yaml:"summary_thinking"`
	SummaryHeader   string `yaml:"summary_header"` // .Summary
	SummaryFallback string `yaml:"summary_fallback"`

	// Weather.
	WeatherError string `yaml:"weather_error"`
	WeatherUsage string `yaml:"weather_usage"`

	// Variables.
	SetUsage        string `yaml:"set_usage"`
	GetUsage        string `yaml:"get_usage"`
	VariableSaved   string `yaml:"variable_saved"` // .Key
	VariableMissing string `yaml:"variable_missing"`

	// Admin GIF flow.
	GifPrompt    string `yaml:"gif_prompt"`
	GifSaved     string `yaml:"gif_saved"`     // .Category
	GifDuplicate string `yaml:"gif_duplicate"` // .Category

	// Misc.
	ChinaTime string `yaml:"china_time"` // .Time
	Startup   string `yaml:"startup"`
}

// Defaults returns the stock Spanish catalogue.
func Defaults() Messages {
	return Messages{
		Late:           "🐢 Llegas tarde, {{.Name}}.",
		AlreadyScored:  "⛔ {{.Name}}, ya tienes medalla hoy.",
		Score:          "{{.Medal}} **{{.Name}}** suma +{{.Points}} pts.",
		PrecisionBonus: "🎯 ¡POLE MILIMÉTRICA! (+2 pts)",
		StreakBonus:    "🔥 ¡Racha de {{.Streak}} días! (+1 pt)",
		NewSeason:      "📅 ¡NUEVA TEMPORADA! Puntos reseteados.",

		RankingHeader:     "🏆 **CLASIFICACIÓN** 🏆",
		RankingEntry:      "{{.Position}}. **{{.Name}}**: {{.Points}} pts | {{.Title}}",
		RankingEmpty:      "Sin datos aún.",
		Achievements:      "🏅 Logros: {{.List}}",
		AchievementsEmpty: "Sin logros aún.",

		CooldownWait:    "⏳ ¡Paciencia! El resumen está recargando. Quedan unos {{.Minutes}} minutos.",
		SummaryThinking: "🧠 Procesando memoria de grupo... (esto puede tardar unos segundos)",
		SummaryHeader:   "📝 **RESUMEN DE LA SITUACIÓN:**\n\n{{.Summary}}",
		SummaryFallback: "🤖 Mi cerebro de IA ha fallado. A lo mejor los servidores están patata.",

		WeatherError: "❌ Error obteniendo el clima.",
		WeatherUsage: "Uso: !tiempo <código postal>",

		SetUsage:        "Uso: !set <nombre> <texto>",
		GetUsage:        "Uso: !get <nombre>",
		VariableSaved:   "✅ Guardado: {{.Key}}",
		VariableMissing: "No existe esa variable.",

		GifPrompt:    "📥 **GIF detectado.**\n¿En qué categoría lo guardo? (escribe solo el nombre)",
		GifSaved:     "✅ Guardado en **{{.Category}}**.",
		GifDuplicate: "⚠️ Este GIF ya existe en la categoría **{{.Category}}**.",

		ChinaTime: "🇨🇳 Hora en China: {{.Time}}",
		Startup:   "✅ Poruko en marcha. La pole se abre a medianoche.",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults unchanged. The file is validated against the
// embedded schema first, so unknown or non-string keys abort startup.
func Load(path string) (Messages, error) {
	msgs := Defaults()
	if path == "" {
		return msgs, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return msgs, fmt.Errorf("messages: read %s: %w", path, err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return msgs, fmt.Errorf("messages: parse %s: %w", path, err)
	}

	schema, err := jsonschema.CompileString("messages.schema.json", schemaJSON)
	if err != nil {
		return msgs, fmt.Errorf("messages: compile schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return msgs, fmt.Errorf("messages: %s does not match schema: %w", path, err)
	}

	// Decode over the defaults: keys absent from the file keep stock text.
	if err := yaml.Unmarshal(raw, &msgs); err != nil {
		return msgs, fmt.Errorf("messages: decode %s: %w", path, err)
	}
	return msgs, nil
}

// Render executes a catalogue entry as a text/template. Template errors are
// a deployment bug, not a per-request failure: they are logged and the raw
// template text is sent so the reply is still visibly broken in chat.
func Render(tmpl string, data any) string {
	t, err := template.New("msg").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		slog.Error("messages: template parse failed", "template", tmpl, "err", err)
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		slog.Error("messages: template render failed", "template", tmpl, "err", err)
		return tmpl
	}
	return buf.String()
}
