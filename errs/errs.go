// Package errs defines the typed error vocabulary shared by every
// pipeline stage: a category, a technical message for logs, a localized
// user-facing message, and a default retryability.
package errs

import (
	"errors"
	"fmt"
	"time"
)

type Category string

const (
	Network       Category = "network"
	APIAuth       Category = "api_auth"
	APIRateLimit  Category = "api_rate_limit"
	APIValidation Category = "api_validation"
	Timeout       Category = "timeout"
	Audio         Category = "audio"
	Clipboard     Category = "clipboard"
	Configuration Category = "configuration"
	EditMode      Category = "edit_mode"
	Unknown       Category = "unknown"
	Cancelled     Category = "cancelled"
)

// Error carries everything a caller needs to log, display, and decide
// whether to retry. It wraps the original cause for errors.Is/As.
type Error struct {
	Category    Category
	Message     string // technical, for logs
	UserMessage string // localized, for display
	Retryable   bool
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// lang selects the user-message locale. Set once at startup from the
// configured language; defaults to English.
var lang = "en"

func SetLanguage(code string) {
	if code == "pt" || code == "en" {
		lang = code
	}
}

type text struct{ en, pt string }

func (t text) String() string {
	if lang == "pt" && t.pt != "" {
		return t.pt
	}
	return t.en
}

var userMsgs = map[string]text{
	"network": {
		en: "Connection problem. Check your internet and try again.",
		pt: "Problema de conexão. Verifique sua internet e tente novamente.",
	},
	"auth": {
		en: "Invalid API key. Check your configuration.",
		pt: "Chave de API inválida. Verifique sua configuração.",
	},
	"rate_limit": {
		en: "Too many requests. Wait a moment and try again.",
		pt: "Muitas requisições. Aguarde um momento e tente novamente.",
	},
	"validation": {
		en: "The service rejected the request.",
		pt: "O serviço rejeitou a requisição.",
	},
	"timeout": {
		en: "The operation took too long. Try again.",
		pt: "A operação demorou demais. Tente novamente.",
	},
	"paste": {
		en: "Text copied, but auto-paste failed. Paste manually with Ctrl+V.",
		pt: "Texto copiado, mas a colagem automática falhou. Cole manualmente com Ctrl+V.",
	},
	"copy": {
		en: "Could not copy the selected text.",
		pt: "Não foi possível copiar o texto selecionado.",
	},
	"clipboard_write": {
		en: "Could not place the text in the clipboard.",
		pt: "Não foi possível colocar o texto na área de transferência.",
	},
	"empty_audio": {
		en: "No audio was recorded. Try again.",
		pt: "Nenhum áudio foi gravado. Tente novamente.",
	},
	"invalid_audio": {
		en: "The recorded audio is invalid.",
		pt: "O áudio gravado é inválido.",
	},
	"missing_key": {
		en: "No API key configured. Add one in the settings.",
		pt: "Nenhuma chave de API configurada. Adicione uma nas configurações.",
	},
	"edit_no_text": {
		en: "No text to edit. Select text before starting edit mode.",
		pt: "Nenhum texto para editar. Selecione um texto antes de iniciar o modo de edição.",
	},
	"edit_empty_instruction": {
		en: "No edit instruction was understood. Try again.",
		pt: "Nenhuma instrução de edição foi entendida. Tente novamente.",
	},
	"edit_empty_result": {
		en: "The edit produced no text. Try again.",
		pt: "A edição não produziu texto. Tente novamente.",
	},
	"unknown": {
		en: "Something went wrong. Try again.",
		pt: "Algo deu errado. Tente novamente.",
	},
}

func newErr(cat Category, retryable bool, msgKey, technical string, cause error) *Error {
	return &Error{
		Category:    cat,
		Message:     technical,
		UserMessage: userMsgs[msgKey].String(),
		Retryable:   retryable,
		Cause:       cause,
	}
}

func NetworkError(cause error) *Error {
	return newErr(Network, true, "network", "network failure", cause)
}

func AuthError(cause error) *Error {
	return newErr(APIAuth, false, "auth", "authentication rejected", cause)
}

func RateLimitError(cause error) *Error {
	return newErr(APIRateLimit, true, "rate_limit", "rate limited", cause)
}

func ValidationError(cause error) *Error {
	return newErr(APIValidation, false, "validation", "request rejected by service", cause)
}

func TimeoutError(op string, d time.Duration) *Error {
	return newErr(Timeout, true, "timeout",
		fmt.Sprintf("%s timed out after %s", op, d), nil)
}

func PasteFailure(cause error) *Error {
	return newErr(Clipboard, false, "paste", "paste keystroke failed", cause)
}

func CopyFailure(cause error) *Error {
	return newErr(Clipboard, false, "copy", "copy keystroke failed", cause)
}

func ClipboardWriteFailure(cause error) *Error {
	return newErr(Clipboard, false, "clipboard_write", "clipboard write failed", cause)
}

func EmptyAudio() *Error {
	return newErr(Audio, false, "empty_audio", "empty audio buffer", nil)
}

func InvalidAudio(reason string) *Error {
	return newErr(Audio, false, "invalid_audio", "invalid audio: "+reason, nil)
}

func MissingAPIKey() *Error {
	return newErr(Configuration, false, "missing_key", "api key not configured", nil)
}

func EditNoText() *Error {
	return newErr(EditMode, false, "edit_no_text", "no base text to edit", nil)
}

func EditEmptyInstruction() *Error {
	return newErr(EditMode, false, "edit_empty_instruction", "transcribed instruction is empty", nil)
}

func EditEmptyResult() *Error {
	return newErr(EditMode, false, "edit_empty_result", "edit returned no text", nil)
}

// CancelledError marks an intentional user abort. It is never retried
// and never shown as a failure.
type CancelledError struct{}

func (*CancelledError) Error() string { return "cancelled" }

func NewCancelled() *CancelledError { return &CancelledError{} }

func IsCancelled(err error) bool {
	var c *CancelledError
	return errors.As(err, &c)
}

// StatusCoder is the surface an HTTP-style service error exposes.
// Both the transcription and the text-generation clients return errors
// implementing it for any non-2xx response.
type StatusCoder interface {
	StatusCode() int
}

// APIError is the black-box service error: a status code plus the raw
// response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Body)
}

func (e *APIError) StatusCode() int { return e.Status }

// CategorizeAPI classifies a black-box service error by status code.
// Client errors are assumed non-transient except rate limiting;
// server and connectivity errors are assumed transient.
func CategorizeAPI(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	var sc StatusCoder
	if !errors.As(err, &sc) {
		// No status at all: connectivity-level failure.
		return NetworkError(err)
	}

	switch status := sc.StatusCode(); {
	case status == 401 || status == 403:
		return AuthError(err)
	case status == 429:
		return RateLimitError(err)
	case status >= 400 && status < 500:
		return ValidationError(err)
	case status >= 500:
		return NetworkError(err)
	default:
		return newErr(Unknown, true, "unknown", fmt.Sprintf("unexpected status %d", status), err)
	}
}

// IsRetryable reports whether an error is worth another attempt.
// Unrecognized errors default to retryable: unknown failures are more
// often transient infra blips than permanent logic errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsCancelled(err) {
		return false
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Retryable
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return CategorizeAPI(err).Retryable
	}
	return true
}
