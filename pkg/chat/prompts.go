package chat

const groundingPromptTemplate = `
Use the Excerpts from the document archive to answer the Question. If the
Excerpts do not cover the topic, answer from the conversation alone and say
the archive has nothing on it.

Excerpts:
{{range .Excerpts}}- {{.}}
{{end}}
Question:
{{.Question}}
`

type GroundingPromptTemplateData struct {
	Excerpts []string
	Question string
}
