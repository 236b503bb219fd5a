package generator

// SystemPrompt is the system prompt for post generation.
const SystemPrompt = `You are a social media copywriter. You write posts that read naturally on the target platform and follow its conventions.

Guidelines:
1. FIT THE PLATFORM: respect the character limit and the optimal length range you are given
2. HASHTAGS: stay inside the optimal hashtag range; never put hashtags inline when they are listed separately
3. ENGAGEMENT: end with a question or a clear call to action when it fits the tone
4. NO FILLER: no emoji walls, no "Here is your post" preambles
5. LINKS: only include a link when the platform renders links as clickable`

// GenerationPrompt is the user prompt template for generation.
// Arguments: platform, max length, optimal min, optimal max, hashtag min,
// hashtag max, platform tips, tone, user prompt.
const GenerationPrompt = `Write one %s post.

Constraints:
- Hard limit: %d characters including hashtags
- Optimal length: %d-%d characters
- Hashtags: %d-%d
- Platform tips:
%s
- Tone: %s

Brief:
---
%s
---

Respond with a JSON object only:
{
  "content": "the post text without hashtags",
  "hashtags": ["tag1", "tag2"]
}`
