package prompts

// DirectCaptionPrompt is sent with every image in direct-caption mode.
const DirectCaptionPrompt = "Describe this image"

// CaptionSystemPrompt frames backends that accept a system message.
const CaptionSystemPrompt = `You are an image captioning assistant. You write one dense, factual caption for the image you are shown.

Rules:
- Describe only what is visible: subjects, clothing, pose, expression, setting, lighting, style.
- When the user supplies tags or a draft caption, keep every detail that the image confirms and drop those it contradicts.
- Answer with the caption only, as plain prose, without lists, headings or quotation marks.`

// RefineTemplate expands a first-stage caption with a second backend.
// The first %s is the user's prompt text, the second the initial caption.
const RefineTemplate = `Here is a draft description of the attached image and the tags that came with it.

Tags and notes:
%s

Draft description:
%s

Rewrite the draft into a single detailed caption. Keep details the image confirms, add what the draft missed, and drop anything the image contradicts.`
