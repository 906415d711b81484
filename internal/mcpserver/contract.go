package mcpserver

// ImportFormatContract describes the recipe import format that LLM consumers
// should follow when calling import_recipes.
const ImportFormatContract = `# Larder Recipe Import Format

Recipes are imported from JSON, YAML or Markdown. Each record is inserted on its
own: one bad record never blocks the others, and the result lists every failure.

## JSON / YAML

A single recipe object, an array of them, or an object with a ` + "`" + `recipes` + "`" + ` array:

` + "```" + `json
[
  {
    "title": "Weeknight Chili",
    "description": "One pot, forty minutes.",
    "difficulty": "easy",
    "prep_time": 10,
    "cook_time": 30,
    "total_time": 40,
    "servings": 4,
    "image": "https://example.com/chili.jpg",
    "categories": ["dinner"],
    "tags": ["quick", "spicy"]
  }
]
` + "```" + `

## Markdown

One recipe per file. YAML frontmatter holds the fields above; the first
` + "`" + `# Heading` + "`" + ` is the title when frontmatter has none; the remaining body becomes the
description. Inline ` + "`" + `#tags` + "`" + ` in the body are merged into ` + "`" + `tags` + "`" + `.

## Defaults

| Field | Missing value becomes |
|---|---|
| title | "Untitled Recipe" |
| description | "" |
| difficulty | "medium" |
| image, prep_time, cook_time, total_time, servings | null |
| categories, tags | [] |

Unknown fields are dropped. ` + "`" + `categories` + "`" + ` and ` + "`" + `tags` + "`" + ` must be lists; anything else
fails that record. Every imported recipe is owned by the importing user.
`
