package scenario

// SimpleQuestions is the baseline VQA workload. Short, common question
// shapes the detector's reference window is built from.
var SimpleQuestions = []string{
	"What is in this image?",
	"What objects can you see?",
	"Describe this image",
	"What is the main subject?",
	"What colors do you see?",
	"Where is this photo taken?",
	"What is happening in this picture?",
	"How many objects are there?",
	"What is the person doing?",
	"What time of day is it?",
}

// ComplexQuestions is the complexity-drift workload. Long compound
// questions shift the question_length, question_char_length, and
// question_tokens features the detector monitors.
var ComplexQuestions = []string{
	"Considering the overall composition and lighting of this scene, what would you say is the most prominent object and how does it relate to everything else that is visible?",
	"If you were to describe this image to someone who cannot see it, including the arrangement of the objects, the background, and the general mood, what would you tell them in detail?",
	"Looking carefully at every region of this picture from the top left corner to the bottom right corner, how many distinct objects can you identify and what are their approximate positions?",
	"Taking into account the colors, the contrast, and the apparent time of day, what kind of environment or location does this image most likely depict and why do you think so?",
	"Among all the shapes and regions visible in this picture, which ones appear to be in the foreground and which ones appear to be in the background, and how can you tell the difference?",
	"What sequence of events might have led to the scene shown in this image, and what do you expect would plausibly happen next if this were a frame from a longer recording?",
	"Comparing the left half of this image with the right half in terms of brightness, object density, and overall visual complexity, which side carries more visual information and why?",
	"If this image were used as training data for an object detection model, which of the visible objects would be easiest to label and which would be the most ambiguous or difficult?",
}
