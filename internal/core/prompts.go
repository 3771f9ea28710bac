package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/healthdesk/benefits-assistant/internal/benefits"
	"github.com/healthdesk/benefits-assistant/internal/store"
)

const (
	LanguageEnglish = "english"
	LanguageHebrew  = "hebrew"
)

// NormalizeLanguage maps user input onto a supported locale. Anything
// unrecognized falls back to English.
func NormalizeLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case LanguageHebrew, "he", "עברית":
		return LanguageHebrew
	default:
		return LanguageEnglish
	}
}

// confirmationPhrases are what the collection prompt tells the model to say
// once the user approves the summary. Seeing one marks the profile confirmed.
var confirmationPhrases = map[string]string{
	LanguageHebrew:  "כל הפרטים נרשמו בהצלחה",
	LanguageEnglish: "Thank you for confirming all the details collected successfully",
}

func ConfirmationPhrase(lang string) string {
	return confirmationPhrases[NormalizeLanguage(lang)]
}

var welcomeMessages = map[string]string{
	LanguageEnglish: `Hello! I'm your Medical Services Assistant. I can help you with information about medical services in Israel.

To give you personalized answers I'll need a few details:
- First Name
- Last Name
- ID Number
- Gender (Male/Female)
- Age
- HMO Name (Maccabi/Meuhedet/Clalit)
- HMO Card Number
- Insurance membership tier (Gold/Silver/Bronze)

We'll go through them one at a time, and I'll help make sure everything is correct.

Let's begin! What's your first name?`,

	LanguageHebrew: `שלום! אני העוזר שלך לשירותי רפואה. אשמח לעזור לך עם מידע על שירותי רפואה בישראל.

כדי לתת לך תשובות מותאמות אישית אצטרך כמה פרטים:
- שם פרטי
- שם משפחה
- מספר זהות
- מין (זכר/נקבה)
- גיל
- שם קופת חולים (מכבי/כללית/מאוחדת)
- מספר כרטיס קופת חולים
- דרגת חברות (זהב/כסף/ארד)

נעבור עליהם אחד אחד, ואני אעזור לוודא שהכל נכון.

בואו נתחיל! מה שמך הפרטי?`,
}

func WelcomeMessage(lang string) string {
	return welcomeMessages[NormalizeLanguage(lang)]
}

var collectionPrompts = map[string]string{
	LanguageEnglish: `You are a helpful assistant collecting user information for medical services.
Collect the following information in a conversational manner:
- First and last name (letters only)
- ID number (9 digits)
- Gender (Male/Female)
- Age (number between 0 and 120)
- HMO name (Maccabi/Meuhedet/Clalit)
- HMO card number (9 digits)
- Insurance membership tier (Gold/Silver/Bronze)

Ask for one piece of information at a time in a friendly way.
If an answer looks incorrect or incomplete, ask the user to clarify or provide it again.
Once everything is collected, show it in a structured summary and ask explicitly: "Is all the information correct?"
When the user approves, reply with: "Thank you for confirming all the details collected successfully."
`,

	LanguageHebrew: `אתה עוזר שאוסף פרטי משתמש עבור שירותי רפואה.
אסוף את המידע הבא בצורה שיחתית:
- שם פרטי ושם משפחה (אותיות בלבד)
- מספר זהות (9 ספרות)
- מין (זכר/נקבה)
- גיל (מספר בין 0 ל-120)
- שם קופת חולים (מכבי/כללית/מאוחדת)
- מספר כרטיס קופת חולים (9 ספרות)
- דרגת חברות (זהב/כסף/ארד)

שאל על פריט מידע אחד בכל פעם בצורה ידידותית.
אם תשובה נראית שגויה או חסרה, בקש מהמשתמש להבהיר או לספק אותה שוב.
לאחר איסוף כל המידע, הצג סיכום מסודר ושאל במפורש: "האם כל הפרטים נכונים?"
אם המשתמש מאשר, השב: "כל הפרטים נרשמו בהצלחה!"
`,
}

func CollectionPrompt(lang string) string {
	return collectionPrompts[NormalizeLanguage(lang)]
}

const extractionPrompt = `Extract the user information from the conversation and return it as a single JSON object with exactly these keys:
{
    "first_name": "string",
    "last_name": "string",
    "id_number": "string",
    "gender": "string",
    "age": "number",
    "hmo_name": "string",
    "hmo_card_number": "string",
    "membership_tier": "string"
}

Rules:
1. Return ONLY the JSON object, no other text.
2. Every key must be present.
3. Use null for any value the user did not give.
4. The response must be valid JSON without comments or markdown.`

const extractionRequest = "Extract the information and return only JSON"

const answerSystemPrompt = "You are a helpful medical services chatbot that provides accurate information about medical benefits based on the user's HMO and membership tier."

const (
	noDataAnswer      = "I apologize, but I couldn't find specific information about your question in the available data. Please try rephrasing your question or contact your HMO directly for more information."
	answerErrorPrefix = "I apologize, but I encountered an error while processing your request: "
)

var confirmedMessages = map[string]string{
	LanguageEnglish: "Great! Your information has been confirmed. You can now ask questions about medical services.",
	LanguageHebrew:  "מצוין! הפרטים שלך אושרו. כעת אפשר לשאול שאלות על שירותי רפואה.",
}

func ConfirmedMessage(lang string) string {
	return confirmedMessages[NormalizeLanguage(lang)]
}

// buildAnswerPrompt grounds the question on the member's details and the
// services their HMO and tier offer.
func buildAnswerPrompt(p store.Profile, question string, services benefits.ServiceMap) (string, error) {
	data, err := marshalIndent(services)
	if err != nil {
		return "", fmt.Errorf("failed to encode benefits data: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a helpful medical services assistant that answers questions about the user's benefits. You have the following information about the user and their benefits:\n\n")
	b.WriteString("User Information:\n")
	fmt.Fprintf(&b, "- Name: %s %s\n", p.FirstName, p.LastName)
	if p.Age != nil {
		fmt.Fprintf(&b, "- Age: %d\n", *p.Age)
	} else {
		b.WriteString("- Age: unknown\n")
	}
	fmt.Fprintf(&b, "- Gender: %s\n", p.Gender)
	fmt.Fprintf(&b, "- HMO: %s\n", p.HMOName)
	fmt.Fprintf(&b, "- Membership Tier: %s\n\n", p.MembershipTier)
	b.WriteString("Relevant Benefits Information:\n")
	b.WriteString(data)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "User Question: %s\n\n", question)
	b.WriteString("Answer clearly and accurately using only the user's specific benefits above. If the information is not in the provided data, say so. Keep the tone natural and conversational without losing accuracy.\n\n")
	b.WriteString("Answer:")
	return b.String(), nil
}

// marshalIndent renders v as two-space indented JSON, keeping non-ASCII
// text and HTML characters as they are.
func marshalIndent(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
