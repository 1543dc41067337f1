package provider

import (
	"fmt"
	"sort"
	"strings"

	"sitegen-backend/internal/model"
)

const createInstructions = `You are an expert web developer specializing in fully functional, interactive single-file web applications built with HTML, CSS and JavaScript.

Follow these rules strictly:
1. Produce one complete, self-contained index.html file.
2. Put all CSS in a <style> tag in the <head> and all JavaScript in a <script> tag right before </body>. Do not reference external CSS or JS files.
3. Make the JavaScript robust so the app is as interactive as requested. Stateful apps such as a todo list should work end to end and may persist data with localStorage.
4. The page must be modern and fully responsive. Prefer Flexbox or Grid.
5. Respond with ONLY the HTML, enclosed in a single markdown code block:
` + "```html" + `
<!DOCTYPE html>
<html>
...
</html>
` + "```" + `
Do not add explanations before or after the code block.`

const modifyInstructions = `You are an expert web developer. Modify the provided single-file web application according to the user's request.

Follow these rules strictly:
1. Change the existing code minimally to implement the request. Do not start from scratch unless the request is a complete overhaul.
2. Keep the single-file structure: CSS stays inline in <style>, JavaScript inline in <script>.
3. Keep new or changed JavaScript working and integrated with the existing code.
4. Respond with ONLY the complete, updated HTML, enclosed in a single markdown code block. Do not add explanations.`

// auxiliaryLabels names the well-known backend settings in the prompt.
var auxiliaryLabels = map[string]string{
	"supabase_url":      "Supabase URL",
	"supabase_anon_key": "Supabase anon key",
}

// Instructions returns the system instructions and the user message for req. The
// modify template is used whenever req carries a base document.
func Instructions(req model.GenerationRequest) (system, user string) {
	var b strings.Builder

	if req.HasBase() {
		system = modifyInstructions
		b.WriteString("Here is the current code of the application:\n```html\n")
		b.WriteString(*req.BaseDocument)
		b.WriteString("\n```\n\n")
		fmt.Fprintf(&b, "The user wants to make the following change: %q", req.Prompt)
	} else {
		system = createInstructions
		fmt.Fprintf(&b, "The user's request is: %q", req.Prompt)
	}

	if placeholders := backendPlaceholders(req.AuxiliaryConfig); placeholders != "" {
		b.WriteString("\n\n")
		b.WriteString(placeholders)
	}
	return system, b.String()
}

// BuildPrompt joins the instructions for transports that accept a single text.
func BuildPrompt(req model.GenerationRequest) string {
	system, user := Instructions(req)
	return system + "\n\n" + user
}

func backendPlaceholders(aux map[string]string) string {
	keys := make([]string, 0, len(aux))
	for k, v := range aux {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("If the app needs a backend, use these values instead of inventing placeholders:\n")
	for _, k := range keys {
		label, ok := auxiliaryLabels[k]
		if !ok {
			label = k
		}
		fmt.Fprintf(&b, "- %s: %s\n", label, aux[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
