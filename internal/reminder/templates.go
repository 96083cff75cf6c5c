package reminder

import (
	"bytes"
	"strings"
	"text/template"
)

// Content is the canned title/body pair for a category.
type Content struct {
	Title string
	Body  string
}

// Templates maps a category to its canned content. Bodies may reference
// .Meal, .Time and .Slot.
var Templates = map[Category]Content{
	CategoryMeal: {
		Title: "Time for {{.Meal}}",
		Body:  "Don't forget to log your {{.Meal}}.",
	},
	CategoryStreakWarning: {
		Title: "Keep your streak alive",
		Body:  "You haven't logged anything today. Log a meal to keep your streak going!",
	},
	CategoryDailySummary: {
		Title: "Your daily summary",
		Body:  "See how today went and what to focus on tomorrow.",
	},
	CategoryWeeklySummary: {
		Title: "Your weekly summary",
		Body:  "Your week in review is ready.",
	},
	CategoryMoodCheckIn: {
		Title: "How are you feeling?",
		Body:  "Take a moment to check in with your mood.",
	},
	CategoryThoughtPrompt: {
		Title: "Thought check",
		Body:  "Notice a thought from today and write it down.",
	},
	CategoryExerciseReminder: {
		Title: "CBT exercise",
		Body:  "Your daily exercise is waiting for you.",
	},
	CategoryEmotionalEatingAlert: {
		Title: "Pause and notice",
		Body:  "Are you hungry, or is something else going on?",
	},
	CategoryCBTStreakWarning: {
		Title: "Don't break your CBT streak",
		Body:  "Complete today's exercise to keep your streak.",
	},
}

type templateData struct {
	Meal string
	Time string
	Slot int
}

// renderContent renders the canned content of a category. Unknown categories
// and broken templates fall back to a generic message.
func renderContent(category Category, data templateData) Content {
	c, ok := Templates[category]
	if !ok {
		return Content{Title: "Reminder", Body: "Notification: " + string(category)}
	}
	return Content{
		Title: render(string(category)+".title", c.Title, data),
		Body:  render(string(category)+".body", c.Body, data),
	}
}

func render(name, text string, data templateData) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return text
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return text
	}
	return buf.String()
}
