package config

import (
	"time"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"

	"github.com/go-go-golems/chatbot/pkg/inference"
)

// Form edits the commonly changed settings. Run it, then call Apply.
type Form struct {
	*huh.Form
	settings *Settings
	idle     string
}

func NewForm(s *Settings) *Form {
	f := &Form{settings: s, idle: s.IdleTimeout.String()}
	f.Form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Inference engine").
				Options(
					huh.NewOption("OpenAI compatible API", inference.EngineOpenAI),
					huh.NewOption("Offline echo", inference.EngineEcho),
				).
				Value(&s.Inference.Engine),
			huh.NewInput().
				Title("OpenAI API key").
				Description("Leave empty to use CHATBOT_OPENAI_API_KEY").
				EchoMode(huh.EchoModePassword).
				Value(&s.Inference.APIKey),
			huh.NewInput().
				Title("Model").
				Value(&s.Inference.Model),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Value(&s.Addr).
				Validate(func(v string) error {
					if v == "" {
						return errors.New("address required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Idle session timeout").
				Value(&f.idle).
				Validate(func(v string) error {
					_, err := time.ParseDuration(v)
					return errors.Wrap(err, "not a duration")
				}),
			huh.NewConfirm().
				Title("Render answers as Markdown?").
				Value(&s.Markdown),
		),
	).WithTheme(huh.ThemeCharm())
	return f
}

// Apply copies the fields entered as text into the settings and validates them.
func (f *Form) Apply() error {
	d, err := time.ParseDuration(f.idle)
	if err != nil {
		return errors.Wrap(err, "idle-timeout")
	}
	f.settings.IdleTimeout = d
	return f.settings.Validate()
}
