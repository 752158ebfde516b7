// internal/services/prompt.go
package services

import (
	"fmt"
	"strings"

	"github.com/ashrithajanga/CineGen/internal/catalog"
	"github.com/ashrithajanga/CineGen/internal/models"
)

// PageBreakMarker 生成文本中约每 500 词插入的分页提示
const PageBreakMarker = "--- PAGE BREAK ---"

// 已在模板正文中使用的参数，其余参数附加在末尾
var templatedParams = map[string]bool{
	catalog.ParamGenre:        true,
	catalog.ParamTone:         true,
	catalog.ParamLength:       true,
	catalog.ParamLanguage:     true,
	catalog.ParamInstructions: true,
}

const resultContract = `Insert "` + PageBreakMarker + `" markers on their own line every ~500 words in the screenplay.
Output strictly JSON with exactly these three string fields and nothing else:
{ "screenplay": "string", "characterNotes": "string", "soundDesign": "string" }`

// BuildPrompt 构造结构化提示词；带 instructions 参数时为改写模式
func BuildPrompt(req *models.GenerationRequest) string {
	var b strings.Builder

	if req.HasParam(catalog.ParamInstructions) {
		fmt.Fprintf(&b, "You are an expert Script Doctor.\n")
		fmt.Fprintf(&b, "Rewrite the following screenplay segment based on these instructions: %q\n", req.Param(catalog.ParamInstructions))
		fmt.Fprintf(&b, "Output Language: %s.\n\n", req.Param(catalog.ParamLanguage))
		fmt.Fprintf(&b, "ORIGINAL SCRIPT:\n%s\n\n", req.Brief())
		b.WriteString("Requirements:\n")
		b.WriteString("1. REWRITTEN SCREENPLAY: Apply the changes. Maintain standard formatting.\n")
		b.WriteString("2. CHARACTER PROFILES (characterNotes): Update profiles if characters changed, otherwise summarize current ones.\n")
		b.WriteString("3. SOUND DESIGN (soundDesign): Update sound design plan for the new scene.\n")
	} else {
		b.WriteString("You are an award-winning Hollywood Screenwriter and Sound Designer.\n")
		fmt.Fprintf(&b, "Generate a %s %s film in %s tone.\n",
			req.Param(catalog.ParamLength), req.Param(catalog.ParamGenre), req.Param(catalog.ParamTone))
		fmt.Fprintf(&b, "Language: %s.\n", req.Param(catalog.ParamLanguage))
		fmt.Fprintf(&b, "Concept: %q\n\n", req.Brief())
		b.WriteString("Requirements:\n")
		b.WriteString("1. INDUSTRY SCREENPLAY: Standard formatting (INT./EXT.). Character cues in uppercase on their own line. Cinematic action. Natural dialogue.\n")
		b.WriteString("2. CHARACTER PROFILES (characterNotes): 3-5 layered characters. Psychology, Conflict, Arc.\n")
		b.WriteString("3. SOUND DESIGN (soundDesign): Scene-by-scene breakdown. Music style, Ambient texture, SFX, Audio emotion.\n")
	}

	var extra []string
	for _, name := range req.ParamNames() {
		if templatedParams[name] || req.Param(name) == "" {
			continue
		}
		extra = append(extra, fmt.Sprintf("- %s: %s", name, req.Param(name)))
	}
	if len(extra) > 0 {
		b.WriteString("\nAdditional parameters:\n")
		b.WriteString(strings.Join(extra, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(resultContract)
	return b.String()
}

// BuildCampaignPrompt 构造社媒文案提示词
func BuildCampaignPrompt(topic, language string) string {
	return fmt.Sprintf(`You are an expert Social Media Strategist and Content Creator.
Create a comprehensive social media campaign about: %q.
Language: %s.

Requirements:
1. INSTAGRAM: A catchy caption, 15+ relevant hashtags, and a detailed description for an image to generate.
2. TWITTER (X): A thread of 3-5 engaging tweets.
3. LINKEDIN: A professional, value-driven post suitable for a business network.
4. TIKTOK / REELS: A creative 30-second video script with visual cues and dialogue/narration.

Output strictly valid JSON with this structure:
{
  "instagram": { "caption": "string", "hashtags": ["string", ...], "imageIdea": "string" },
  "twitter": ["string", "string", ...],
  "linkedin": "string",
  "tiktok": "string"
}`, topic, language)
}
