package composer

import "github.com/kalambet/nanny/internal/keywords"

// NoReferenceMessage is returned whenever no reference material is available.
const NoReferenceMessage = "I don't have any reference material to draw on yet, so I can't give you reliable guidance. " +
	"Please add some documents and ask again. If you are worried about your baby right now, contact your pediatrician."

// ErrorMessage is the transient notice shown when an exchange could not be
// completed at all.
const ErrorMessage = "Sorry, something went wrong on my side. Please try again in a moment."

// frame is the topic-specific wrapping around composed information. The
// last frame of a style has no cues and acts as the default.
type frame struct {
	cues  []string
	intro string
	tip   string
}

type styleTemplates struct {
	frames     []frame
	footer     string
	greeting   string
	supportive map[keywords.Emotion]string
}

var templatesByStyle = map[Style]styleTemplates{
	StyleWarm: {
		frames: []frame{
			{
				cues:  []string{"fever", "febre", "temperature", "temperatura"},
				intro: "I know how worrying a fever can be. Here is what can help:",
				tip:   "Watch how your baby is acting, not only the number on the thermometer, and keep offering fluids.",
			},
			{
				cues:  []string{"breast", "amament", "milk", "leite", "feed", "bottle", "mamad"},
				intro: "Feeding brings up lots of questions, and that's completely normal.",
				tip:   "Every baby has their own rhythm. Trust yourself and follow your baby's hunger cues.",
			},
			{
				cues:  []string{"sleep", "sono", "dorm", "nap", "night", "noite"},
				intro: "Sleep is one of the biggest challenges of these first months.",
				tip:   "Calm, predictable routines help, and it's okay if it takes a while to find what works for you both.",
			},
			{
				cues:  []string{"cry", "choro", "chora", "colic", "cólica"},
				intro: "Crying is how babies tell us they need something.",
				tip:   "Holding your baby close and gentle rocking often bring comfort. Take turns with someone when you can.",
			},
			{
				cues:  []string{"guilt", "culpa", "anxious", "ansio", "worried", "preocup"},
				intro: "Your worry shows how much you care.",
				tip:   "You are doing your best, and asking questions is part of taking good care of your baby.",
			},
			{
				intro: "Here is some information that may help:",
			},
		},
		footer: "If anything seems serious or urgent, please contact your pediatrician or emergency services right away.",
		greeting: "Hi! I'm Nanny, and I'm here to support you with your baby's care. " +
			"You can ask me about feeding, sleep, fever, crying, bathing or development. How can I help today?",
		supportive: map[keywords.Emotion]string{
			keywords.EmotionAnxious: "I can tell you're worried, and that's completely understandable. " +
				"Take a deep breath: looking for information is already a way of caring for your baby. " +
				"I couldn't find anything specific about this in my reference material, so if the worry stays with you, " +
				"please talk to your pediatrician. Is there something else about your baby's routine I can help with?",
			keywords.EmotionExhausted: "It sounds like you're really tired, and that is so common in this phase. " +
				"Rest whenever you can and accept help from the people around you. " +
				"I don't have specific guidance on this question, but I'm happy to help with feeding, sleep or daily care.",
			keywords.EmotionFirstTime: "Being a new parent comes with so many questions, and every one of them is valid. " +
				"I couldn't find this in my reference material, but your pediatrician is the best person to ask. " +
				"I can help with feeding, sleep, bathing, crying and other everyday care.",
			keywords.EmotionOverwhelmed: "It sounds like a lot is happening right now, and feeling overwhelmed is okay. " +
				"You don't have to handle everything alone: reach out to someone you trust, and to your pediatrician if something worries you. " +
				"When you're ready, tell me one thing you'd like help with.",
			keywords.EmotionNormal: "I'm here to help with your baby's care. I can answer questions about feeding and breastfeeding, " +
				"sleep and routines, fever and common illnesses, crying and colic, bathing and diaper care, and growth and development. " +
				"Could you tell me a little more about what you'd like to know?",
		},
	},
	StyleClinical: {
		frames: []frame{
			{intro: "Relevant guidance:"},
		},
		footer:   "For anything serious or urgent, consult a pediatrician or emergency services.",
		greeting: "Hello. Ask a question about infant feeding, sleep, fever, crying, hygiene or development.",
		supportive: map[keywords.Emotion]string{
			keywords.EmotionNormal: "The available reference material does not cover this question. " +
				"Topics covered include feeding, sleep, fever, crying, hygiene and development. " +
				"For specific concerns, consult a pediatrician.",
		},
	},
	StyleTerse: {
		frames: []frame{
			{},
		},
		footer:   "Serious or urgent? Contact a pediatrician or emergency services.",
		greeting: "Hi. What would you like to know about your baby?",
		supportive: map[keywords.Emotion]string{
			keywords.EmotionNormal: "No reference material covers that. Try asking about feeding, sleep, fever, crying, bathing or growth, or ask your pediatrician.",
		},
	},
}
