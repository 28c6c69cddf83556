package service

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	msgReleaseConfirmedTitle   = "release.confirmed.title"
	msgReleaseConfirmedMessage = "release.confirmed.message"
	msgPromptTitle             = "gate.prompt.title"
	msgPromptMessage           = "gate.prompt.message"
	msgPromptConfirm           = "gate.prompt.confirm"
	msgPromptCancel            = "gate.prompt.cancel"
	msgResultReleased          = "gate.result.released"
	msgResultNotFound          = "gate.result.not_found"
	msgResultNoMatch           = "gate.result.no_match"
	msgResultCancelled         = "gate.result.cancelled"
	msgResultAlreadyReleased   = "gate.result.already_released"
	msgResultPartial           = "gate.result.partial"
	msgResultError             = "gate.result.error"
	msgResultDisabled          = "gate.result.disabled"
)

var supportedLocales = []language.Tag{language.BrazilianPortuguese, language.English}

var localeMatcher = language.NewMatcher(supportedLocales)

var timeLayouts = map[language.Tag]string{
	language.BrazilianPortuguese: "02/01/2006 às 15:04",
	language.English:             "Jan 2, 2006 at 3:04 PM",
}

func newMessageCatalog() (*catalog.Builder, error) {
	builder := catalog.NewBuilder(catalog.Fallback(language.BrazilianPortuguese))
	entries := map[language.Tag]map[string]string{
		language.BrazilianPortuguese: {
			msgReleaseConfirmedTitle:   "Saída Confirmada",
			msgReleaseConfirmedMessage: "Sua saída foi confirmada em %s por %s.",
			msgPromptTitle:             "Confirmar Saída",
			msgPromptMessage:           "Liberar %s? Autorizado por %s.",
			msgPromptConfirm:           "Confirmar",
			msgPromptCancel:            "Cancelar",
			msgResultReleased:          "Saída de %s confirmada.",
			msgResultNotFound:          "Aluno não encontrado nesta unidade.",
			msgResultNoMatch:           "Nenhuma liberação pendente para %s.",
			msgResultCancelled:         "Liberação cancelada.",
			msgResultAlreadyReleased:   "Esta liberação já foi confirmada.",
			msgResultPartial:           "Saída de %s confirmada, mas houve falha ao registrar a saída ou notificar o aluno.",
			msgResultError:             "Não foi possível processar a leitura. Tente novamente.",
			msgResultDisabled:          "Leitor desativado: não foi possível acessar a câmera.",
		},
		language.English: {
			msgReleaseConfirmedTitle:   "Exit Confirmed",
			msgReleaseConfirmedMessage: "Your exit was confirmed on %s by %s.",
			msgPromptTitle:             "Confirm Exit",
			msgPromptMessage:           "Release %s? Authorized by %s.",
			msgPromptConfirm:           "Confirm",
			msgPromptCancel:            "Cancel",
			msgResultReleased:          "Exit confirmed for %s.",
			msgResultNotFound:          "Student not found in this unit.",
			msgResultNoMatch:           "No pending release for %s.",
			msgResultCancelled:         "Release cancelled.",
			msgResultAlreadyReleased:   "This release was already confirmed.",
			msgResultPartial:           "Exit confirmed for %s, but recording the exit or notifying the student failed.",
			msgResultError:             "Could not process the scan. Please try again.",
			msgResultDisabled:          "Scanner disabled: the camera could not be started.",
		},
	}
	for tag, messages := range entries {
		for key, text := range messages {
			if err := builder.SetString(tag, key, text); err != nil {
				return nil, fmt.Errorf("register %s message %s: %w", tag, key, err)
			}
		}
	}
	return builder, nil
}

// Localizer renders operator and student facing text in the configured locale and timezone.
type Localizer struct {
	tag      language.Tag
	printer  *message.Printer
	location *time.Location
}

// NewLocalizer resolves locale and timezone. Unknown locales fall back to Brazilian Portuguese.
func NewLocalizer(locale, timezone string) (*Localizer, error) {
	builder, err := newMessageCatalog()
	if err != nil {
		return nil, err
	}

	requested, err := language.Parse(locale)
	if err != nil {
		requested = language.BrazilianPortuguese
	}
	_, index, _ := localeMatcher.Match(requested)
	tag := supportedLocales[index]

	location := time.UTC
	if timezone != "" {
		location, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}

	return &Localizer{
		tag:      tag,
		printer:  message.NewPrinter(tag, message.Catalog(builder)),
		location: location,
	}, nil
}

// Tag returns the resolved locale.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// FormatTime renders at in the configured timezone.
func (l *Localizer) FormatTime(at time.Time) string {
	return at.In(l.location).Format(timeLayouts[l.tag])
}

// ReleaseConfirmedTitle is the notification title for a completed release.
func (l *Localizer) ReleaseConfirmedTitle() string {
	return l.printer.Sprintf(msgReleaseConfirmedTitle)
}

// ReleaseConfirmedMessage is the notification body for a completed release.
func (l *Localizer) ReleaseConfirmedMessage(at time.Time, gatekeeper string) string {
	return l.printer.Sprintf(msgReleaseConfirmedMessage, l.FormatTime(at), gatekeeper)
}

// PromptTitle is the confirmation dialog title.
func (l *Localizer) PromptTitle() string {
	return l.printer.Sprintf(msgPromptTitle)
}

// PromptMessage is the confirmation dialog body.
func (l *Localizer) PromptMessage(studentName, authorizedBy string) string {
	return l.printer.Sprintf(msgPromptMessage, studentName, authorizedBy)
}

// PromptLabels returns the confirm and cancel button labels.
func (l *Localizer) PromptLabels() (string, string) {
	return l.printer.Sprintf(msgPromptConfirm), l.printer.Sprintf(msgPromptCancel)
}

// ResultReleased is shown after a confirmed release.
func (l *Localizer) ResultReleased(studentName string) string {
	return l.printer.Sprintf(msgResultReleased, studentName)
}

// ResultPartial is shown when the release was flipped but a follow-up write failed.
func (l *Localizer) ResultPartial(studentName string) string {
	return l.printer.Sprintf(msgResultPartial, studentName)
}

// ResultNoMatch is shown when the student has no pending release.
func (l *Localizer) ResultNoMatch(studentName string) string {
	return l.printer.Sprintf(msgResultNoMatch, studentName)
}

// ResultNotFound is shown when the token resolves to no student.
func (l *Localizer) ResultNotFound() string {
	return l.printer.Sprintf(msgResultNotFound)
}

// ResultCancelled is shown when the operator declines the prompt.
func (l *Localizer) ResultCancelled() string {
	return l.printer.Sprintf(msgResultCancelled)
}

// ResultAlreadyReleased is shown when another gate confirmed the release first.
func (l *Localizer) ResultAlreadyReleased() string {
	return l.printer.Sprintf(msgResultAlreadyReleased)
}

// ResultError is the generic failure message.
func (l *Localizer) ResultError() string {
	return l.printer.Sprintf(msgResultError)
}

// ResultDisabled is shown when the decoder failed to start.
func (l *Localizer) ResultDisabled() string {
	return l.printer.Sprintf(msgResultDisabled)
}
