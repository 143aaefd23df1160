package ivr

// Locale selects the prompt language for a call.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleES Locale = "es"
)

// ParseLocale returns the locale for a stored language code, defaulting
// to English for anything unrecognized.
func ParseLocale(s string) Locale {
	if s == string(LocaleES) {
		return LocaleES
	}
	return LocaleEN
}

// voiceLanguage is the carrier TTS language tag for each locale.
var voiceLanguage = map[Locale]string{
	LocaleEN: "en-US",
	LocaleES: "es-MX",
}

// promptSet holds every caller-facing prompt for one locale. Prompts are
// fixed text: a retried webhook must reproduce byte-identical output.
type promptSet struct {
	consentDisclosure string
	consentReprompt   string
	optOut            string
	menuGreeting      string
	menuReprompt      string
	voicemailIntro    string
	voicemailThanks   string
	bridging          string
	apology           string
}

var prompts = map[Locale]promptSet{
	LocaleEN: {
		consentDisclosure: "Thank you for calling. This call may be recorded for quality purposes. Press 1 to consent to recording, or press 9 to decline.",
		consentReprompt:   "Sorry, I didn't get that. Press 1 to consent to recording, or press 9 to decline.",
		optOut:            "Understood. We will not record this call. Goodbye.",
		menuGreeting:      "Press 1 to reach the front desk, or press 2 to leave your details with our assistant.",
		menuReprompt:      "Sorry, I didn't get that. Press 1 for the front desk, or press 2 for our assistant.",
		voicemailIntro:    "No one is available right now. Please leave a message after the tone.",
		voicemailThanks:   "Thank you for your message. Goodbye.",
		bridging:          "Please hold while we connect you.",
		apology:           "We are sorry, something went wrong. Please call back later. Goodbye.",
	},
	LocaleES: {
		consentDisclosure: "Gracias por llamar. Esta llamada puede ser grabada con fines de calidad. Presione 1 para aceptar la grabación, o presione 9 para rechazarla.",
		consentReprompt:   "Perdón, no le entendí. Presione 1 para aceptar la grabación, o presione 9 para rechazarla.",
		optOut:            "Entendido. No grabaremos esta llamada. Adiós.",
		menuGreeting:      "Presione 1 para hablar con la recepción, o presione 2 para dejar sus datos con nuestro asistente.",
		menuReprompt:      "Perdón, no le entendí. Presione 1 para la recepción, o presione 2 para nuestro asistente.",
		voicemailIntro:    "Nadie está disponible en este momento. Por favor deje un mensaje después del tono.",
		voicemailThanks:   "Gracias por su mensaje. Adiós.",
		bridging:          "Por favor espere mientras le conectamos.",
		apology:           "Lo sentimos, ocurrió un error. Por favor llame más tarde. Adiós.",
	},
}
