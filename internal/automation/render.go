package automation

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// variables builds the placeholder values for an event. args is the command
// argument text, empty for non-command triggers.
func variables(ev Event, args string) map[string]string {
	chat := chatOf(ev)
	vars := map[string]string{
		"group_id": chat.ID,
		"group":    chat.Title,
		"args":     args,
		"event":    ev.Kind(),
	}
	if vars["group"] == "" {
		vars["group"] = chat.ID
	}

	if user, ok := subjectOf(ev); ok {
		vars["user"] = user.DisplayName()
		vars["username"] = user.Username
		vars["user_id"] = user.ID
	}

	switch e := ev.(type) {
	case ChatMessage:
		vars["text"] = e.Text
	case GenericEvent:
		vars["event"] = e.Name
	}
	return vars
}

// render substitutes {name} placeholders. Unknown names are left as written.
func render(tmpl string, vars map[string]string) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}
