package usecase

// RenderTutorPrompt exposes the prompt assembly for testing
var RenderTutorPrompt = renderTutorPrompt
