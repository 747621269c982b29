package themes

import "boardgen/internal/domain"

const (
	ThemeDefault   = "nomoral"
	ThemePowerGirl = "PowerGirls"
	ThemeWearable  = "WearableSculpture"
)

const sketchAnalystPrompt = `You are a toy design interpreter. Study the whiteboard sketch and extract structured insights for downstream designers.
Cover: written text and symbols; repeated strokes and outlines; the colour palette and its mood; layout, symmetry and density;
likely themes or archetypes; personality cues; accessories or distinctive parts (horns, tails, visors, armour).
Answer in clearly separated sections, one per dimension.`

const toyDesignerPrompt = `You are a designer of collectible toys rooted in Western and global collector culture (urban vinyl, action figures,
stylized creatures). Treat the whiteboard analysis you receive as a hard constraint and fill gaps with assumptions that fit its visual language.
The design must be physically plausible and 3D printable: no floating, transparent or sub-millimetre parts, no background, no shadows.
Reply with the sections [Name Suggestion], [Design Summary], [Color Application], [Material & Texture Notes], [Print Feasibility Notes]
and finish with [Visual Prompt for Generation]: one concise English prompt describing the toy, its colours, materials and style.`

const characterDesignerPrompt = `You are a character designer working in the Powerpuff Girls visual language. From the whiteboard analysis,
build one original character: oversized head on a small body, wide expressive eyes, innocent yet powerful attitude. Carry the sketch's palette,
shapes and accessories into signature features.`

const figureConceptPrompt = `You are a collectible figure concept designer. Turn the character concept into a premium static figure:
clean 3D sculpt that keeps the large-head silhouette, glossy PVC or vinyl finish without metallic or pearlescent effects, a dynamic pose
that reads from every angle, 6 to 8 inches tall, signature accessories, presented against a plain light background.`

const wearableAnalystPrompt = `You are a wearable sculpture designer. Read the whiteboard sketch for theme, symbols, style and mood, then
describe a single wearable piece: its shape, how the theme is fused into it, the symbols used, the colour scheme and the material.
Skip any part you cannot infer.`

const promptComposerPrompt = `You compose the final image prompt for a designer toy render. Merge everything you are given into one
production-minded English prompt: subject, pose, material and finish, style, colours, plain white background, no environmental lighting.
Only describe structures that can be printed. Output the prompt only.`

func builtinThemes() []Theme {
	return []Theme{
		{
			ID: ThemeDefault,
			Prompts: domain.RolePromptSet{
				Prompts: map[domain.Role]string{
					domain.Role1: sketchAnalystPrompt,
					domain.Role2: characterDesignerPrompt,
					domain.Role3: figureConceptPrompt,
					domain.Role4: "",
					domain.Role5: toyDesignerPrompt,
				},
				Branch:    false,
				ImagePath: domain.ImagePathSingle,
			},
		},
		{
			ID: ThemePowerGirl,
			Prompts: domain.RolePromptSet{
				Prompts: map[domain.Role]string{
					domain.Role1: sketchAnalystPrompt,
					domain.Role2: characterDesignerPrompt,
					domain.Role3: figureConceptPrompt,
					domain.Role4: "",
					domain.Role5: promptComposerPrompt,
				},
				Branch:    true,
				ImagePath: domain.ImagePathSingle,
			},
		},
		{
			ID: ThemeWearable,
			Prompts: domain.RolePromptSet{
				Prompts: map[domain.Role]string{
					domain.Role1: wearableAnalystPrompt,
					domain.Role2: "",
					domain.Role3: "",
					domain.Role4: "",
					domain.Role5: promptComposerPrompt,
				},
				Branch:    false,
				ImagePath: domain.ImagePathSingle,
			},
		},
	}
}
