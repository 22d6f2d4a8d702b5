package metadata

// DefaultSystemPrompt instructs the model to act as a bibliographic
// extractor returning JSON only.
const DefaultSystemPrompt = `You are a scientific publishing assistant that extracts bibliographic metadata from manuscript text.

Rules:
- Answer ONLY based on information present in the provided text
- Return valid JSON and nothing else
- Use an empty string for any field not stated in the text
- Authors must be a JSON array of strings, one entry per author
- Do not invent a DOI; leave it empty unless one appears verbatim`

// DefaultTemplate is the user message template. The {text} placeholder is
// replaced with the head of the manuscript.
const DefaultTemplate = `Extract the metadata of the following scientific manuscript.

Manuscript text:
{text}

Respond with ONLY valid JSON in this format:
{
  "title": "<manuscript title>",
  "authors": ["<author 1>", "<author 2>"],
  "design": "<study design, e.g. randomized controlled trial>",
  "doi": "<DOI if stated, else empty>",
  "abstract": "<the abstract text>",
  "email": "<corresponding author email if stated>",
  "discipline": "<research discipline>"
}`

// textPlaceholder marks where the manuscript head is substituted into the
// user template.
const textPlaceholder = "{text}"
