package locale

import "fmt"

// Lang identifies an answer language for user-facing text.
type Lang string

const (
	English Lang = "en"
	Russian Lang = "ru"
)

// Normalize maps an arbitrary language tag onto a supported Lang.
// Anything unrecognized falls back to English.
func Normalize(tag string) Lang {
	switch tag {
	case string(Russian):
		return Russian
	default:
		return English
	}
}

// MessageKey names a user-facing message in the catalog.
type MessageKey string

const (
	MsgEmptyQuestion    MessageKey = "empty_question"
	MsgNoData           MessageKey = "no_data"
	MsgQuotaExceeded    MessageKey = "quota_exceeded"
	MsgServiceBusy      MessageKey = "service_busy"
	MsgTimeout          MessageKey = "timeout"
	MsgGenericFailure   MessageKey = "generic_failure"
	MsgConfigError      MessageKey = "config_error"
	MsgLivenessResponse MessageKey = "liveness"
)

var catalog = map[Lang]map[MessageKey]string{
	English: {
		MsgEmptyQuestion:    "Please enter a question.",
		MsgNoData:           "No request data received.",
		MsgQuotaExceeded:    "The assistant is very popular right now. Please try again in a few minutes.",
		MsgServiceBusy:      "The assistant is temporarily unavailable. Please try again shortly.",
		MsgTimeout:          "The assistant took too long to respond. Please try again.",
		MsgGenericFailure:   "Sorry, I encountered an error. Please try again later.",
		MsgConfigError:      "The assistant is not configured yet. Please check back later.",
		MsgLivenessResponse: "This endpoint accepts POST requests only.",
	},
	Russian: {
		MsgEmptyQuestion:    "Пожалуйста, введите вопрос.",
		MsgNoData:           "Данные запроса не получены.",
		MsgQuotaExceeded:    "Ассистент сейчас очень востребован. Попробуйте снова через несколько минут.",
		MsgServiceBusy:      "Ассистент временно недоступен. Попробуйте снова чуть позже.",
		MsgTimeout:          "Ассистент отвечал слишком долго. Попробуйте ещё раз.",
		MsgGenericFailure:   "Извините, произошла ошибка. Попробуйте позже.",
		MsgConfigError:      "Ассистент ещё не настроен. Загляните позже.",
		MsgLivenessResponse: "Этот эндпоинт принимает только POST-запросы.",
	},
}

// Message returns the catalog text for key in lang.
func Message(lang Lang, key MessageKey) string {
	if m, ok := catalog[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return catalog[English][MsgGenericFailure]
}

// HourlyLimit returns the hourly rate-limit denial text naming the limit.
func HourlyLimit(lang Lang, max int) string {
	if lang == Russian {
		return fmt.Sprintf("Достигнут лимит: не более %d вопросов в час. Попробуйте позже.", max)
	}
	return fmt.Sprintf("You have reached the limit of %d questions per hour. Please try again later.", max)
}

// DailyLimit returns the daily rate-limit denial text naming the limit.
func DailyLimit(lang Lang, max int) string {
	if lang == Russian {
		return fmt.Sprintf("Достигнут лимит: не более %d вопросов в день. Возвращайтесь завтра!", max)
	}
	return fmt.Sprintf("You have reached the limit of %d questions per day. Please come back tomorrow!", max)
}
