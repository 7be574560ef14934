package contentgen

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an expert course content writer for CCPQ (Centre for Continuous Professional Qualifications), a professional training institution in South Africa. Generate comprehensive, professional course content.

FORMATTING RULES:
- Use plain text with line breaks, NOT markdown
- For lists, use simple bullet points with "• " prefix
- Keep content professional and formal
- Focus on practical, career-oriented benefits
- Content should suit working professionals seeking qualifications

Curriculum format:
Module 1: Introduction to [Topic]
• Understanding fundamentals
• Key concepts and terminology

Learning outcomes format:
Upon completion of this course, learners will be able to:
• [Outcome]

Target audience format:
This course is ideal for:
• [Audience]`

const outputSchema = `{
  "description": "A 150-250 word description of the course, its importance, and what students will gain",
  "short_description": "A 1-2 sentence summary (max 150 characters)",
  "curriculum": "Detailed curriculum with 4-6 modules, each with 3-5 bullet points",
  "learning_outcomes": "5-8 specific, measurable learning outcomes",
  "who_should_take": "Ideal candidates with 4-6 bullet points of target audiences"
}`

func userPrompt(input CourseInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate complete course content for: %q\n\n", input.Title)
	if input.Description != "" {
		fmt.Fprintf(&b, "Existing description (improve if needed): %s\n", input.Description)
	}
	if input.Curriculum != "" {
		fmt.Fprintf(&b, "Existing curriculum (improve if needed): %s\n", input.Curriculum)
	}
	if input.Duration != "" {
		fmt.Fprintf(&b, "Course duration: %s\n", input.Duration)
	}
	b.WriteString("\nGenerate the following in JSON format:\n")
	b.WriteString(outputSchema)
	b.WriteString("\n\nReturn ONLY valid JSON, no markdown code blocks.")
	return b.String()
}
