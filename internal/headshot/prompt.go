package headshot

import "strings"

// Fixed prompt fragments. The composed generation prompt is pure
// concatenation: no validation, truncation or filtering happens here.
const (
	fragmentHeader = "Photorealistic, high-resolution, vertical, editorial head-and-chest portrait. Maintain accurate and realistic skin texture."

	fragmentPose = "The individual's body is slightly angled camera right (subject left), while their head is turned fully toward the camera. Their chin is slightly raised, shot from a low angle to create a sense of presence."

	fragmentLighting = "The lighting is dramatic, high-contrast chiaroscuro. A single pure, neutral white 5600k, small, gridded dish from camera left, casting a head focused, pool of light, creating high contrast and casting deep, sharp shadows; this light is strictly colorless and untinted. A strong, hard rim light with a vivid #E5E9A2 tint from camera right, sculpts their hair and shoulder, creating a sharp, defined edge. The background is a solid, artificial color block of faded-lime #E5E9A2, with a subtle gradient becoming brighter at the top, creating a clean, graphic, modern aesthetic. The vibe is Editorial mood, sharp focus, sculptural definition, contemporary style."

	subjectLabel = "SUBJECT DESCRIPTION:"
)

// NegativeConstraints is sent as the system-level instruction of the
// generation call.
const NegativeConstraints = "Accurately match image 1 wardrobe and facial features. No distortions, wrong gender presentation, mismatched skin tones, inaccurate facial features, double faces, warping, extra limbs, mutated hands, inconsistent lighting, incorrect background color, blurry textures, or cartoonish artifacts. No nudity. No visible lighting equipment. Editorial. Professional."

// FaceAnalysisInstruction asks the vision model for a short description of
// the person in photo slot 1.
const FaceAnalysisInstruction = `Generate a simple 50 word description of the individual in the photo. Do not describe their surrounding, background, lighting, pose, or wardrobe. Only describe the person's features, facial accessories, whether they have an open or clothed mouth smile, and complexion. I want the format to be: "A (skin colour), (age estimation), (sex) with (hair colour and style). Their eye colour is (eye-colour). They have (facial hair description). They are wearing (accessories description). They have a (expression description).`

// WardrobeAnalysisInstruction asks for the wardrobe description, again from
// photo slot 1 only.
const WardrobeAnalysisInstruction = `Generate a simple, maximum of 35 word description of the wardrobe worn by the individual in the photo. Only add detail if necessary. I want the format to be: "The person is wearing a (wardrobe description)." `

// ComposePrompt joins the static fragments with the two generated
// descriptions in fixed order. Deterministic: identical inputs produce
// byte-identical output.
func ComposePrompt(faceDesc, wardrobeDesc string) string {
	return strings.Join([]string{
		fragmentHeader,
		fragmentPose,
		subjectLabel,
		faceDesc,
		wardrobeDesc,
		fragmentLighting,
	}, "\n")
}
