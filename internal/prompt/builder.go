package prompt

// Builder renders prompts with one fixed template variant.
type Builder struct {
	template Template
}

func NewBuilder(t Template) *Builder {
	if t == "" {
		t = DefaultTemplate
	}
	return &Builder{template: t}
}

func (b *Builder) Template() Template { return b.template }

// Build places the catalog, the retrieved context and the scenario query into
// the template, in that order. An empty context still renders its section.
func (b *Builder) Build(query, context string, catalog Catalog) string {
	return b.template.render(catalogText(catalog), context, query)
}

// Build renders with the default template.
func Build(query, context string, catalog Catalog) string {
	return NewBuilder(DefaultTemplate).Build(query, context, catalog)
}

func catalogText(c Catalog) string {
	if len(c.Groups) == 0 {
		return "{}"
	}
	return c.Text()
}
