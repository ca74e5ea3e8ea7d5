package prompt

import (
	"fmt"
	"strings"
)

type Template string

const (
	TemplateLlama2Chat Template = "llama2_chat"
	TemplateInst       Template = "inst"
)

const DefaultTemplate = TemplateLlama2Chat

const (
	systemText = "You are an AI assistant specialized in creating military behavior trees."

	chatUserText = "Use the following node types in the creation of the tree:\n%s\n\n" +
		"Context about military behavior trees:\n%s\n\n" +
		"Generate a behavior tree in XML format for:\n%s\n\n" +
		"The output should be a valid XML behavior tree."

	instText = "[INST] Use the following node types in the creation of the tree:\n%s\n\n" +
		"Using the following context about military behavior trees:\n\n%s\n\n" +
		"Generate a behavior tree in XML format for the following scenario:\n%s\n\n" +
		"The output should be a valid XML behavior tree. [/INST]"
)

// ParseTemplate maps a config value onto a known variant. Blank selects the default.
func ParseTemplate(s string) (Template, error) {
	switch Template(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultTemplate, nil
	case TemplateLlama2Chat:
		return TemplateLlama2Chat, nil
	case TemplateInst:
		return TemplateInst, nil
	default:
		return "", fmt.Errorf("unknown prompt template %q", s)
	}
}

func (t Template) render(nodeTypes, context, query string) string {
	switch t {
	case TemplateInst:
		return fmt.Sprintf(instText, nodeTypes, context, query)
	default:
		user := fmt.Sprintf(chatUserText, nodeTypes, context, query)
		return "<s>[INST] <<SYS>>\n" + systemText + "\n<</SYS>>\n\n" + user + " [/INST]"
	}
}
