package textnorm

import "regexp"

// Rule is one entry of the clinical-text denylist. A sentence matching any
// rule is never shown to a user. Redact rules additionally remove the
// offending clause, from the match up to the next sentence terminator, when
// normalizing or simplifying text.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Redact  bool
}

// Replacement maps a clinical or formal term to plain caregiver language.
type Replacement struct {
	Pattern *regexp.Regexp
	With    string
}

// Document scaffolding added by corpus assembly, upload pipelines and
// placeholder extractors.
var markers = []*regexp.Regexp{
	regexp.MustCompile(`(?m)(?:Título|Title):[^\n]*\n\n`),
	regexp.MustCompile(`(?:Conteúdo|Content):\n`),
	regexp.MustCompile(`-{3,}`),
	regexp.MustCompile(`(?i)(?:conteúdo extraído do arquivo|content extracted from file)[^:\n]*:`),
	regexp.MustCompile(`(?i)(?:este é um conteúdo simulado|this is simulated content)[^.]*\.`),
	regexp.MustCompile(`(?i)(?:em produção|in production)[^.]*\.`),
}

// Denylist is the ordered set of rejection rules.
var Denylist = []Rule{
	{
		Name:    "technical-terms",
		Pattern: regexp.MustCompile(`(?i)\b(?:encefalopatia|encephalopathy|bilirrubina|bilirubin|mieliniza\w*|myelination|neurônios|neurons?|gestacional|gestational)\b`),
		Redact:  true,
	},
	{
		Name:    "gestational-age-threshold",
		Pattern: regexp.MustCompile(`(?i)\b(?:RN|newborns?)\s*<\s*\d+\s*(?:semanas|weeks)`),
		Redact:  true,
	},
	{
		Name:    "population-percentage",
		Pattern: regexp.MustCompile(`(?i)\d+\s*%\s*(?:de crianças|of children)`),
		Redact:  true,
	},
	{
		Name:    "estimated-levels",
		Pattern: regexp.MustCompile(`(?i)\bníveis\b[^.]*\bestimados\b|\bestimated\s+(?:average\s+)?levels\b`),
		Redact:  true,
	},
	{
		Name:    "day-reduction",
		Pattern: regexp.MustCompile(`(?i)\d+º\s*dia[^.]*\bcom redução|\bday\s+\d+[^.]*\bwith\s+(?:a\s+)?reduction\b`),
		Redact:  true,
	},
	{
		Name:    "estimate-range",
		Pattern: regexp.MustCompile(`(?i)\bestima-se que entre\b|\bit is estimated that between\b`),
		Redact:  true,
	},
	{
		Name:    "clinical-jargon",
		Pattern: regexp.MustCompile(`(?i)\b(?:patológico|etiológico|fisiopatológico|diagnóstico diferencial|prognóstico|prevalência|incidência|morbimortalidade|epidemiológico|pathological|etiological|pathophysiological|differential diagnosis|prognosis|prevalence|incidence|morbidity|mortality|epidemiological)\b`),
		Redact:  true,
	},
	{
		Name:    "ellipsis",
		Pattern: regexp.MustCompile(`\.\.\.|…`),
	},
	{
		Name:    "broken-word",
		Pattern: regexp.MustCompile(`mé -`),
	},
	{
		Name:    "broken-number",
		Pattern: regexp.MustCompile(`\b000 de\b`),
	},
}

// Simplifications is applied in order by Simplify.
var Simplifications = []Replacement{
	{regexp.MustCompile(`(?i)\badminister(?:ed|ing)?\b`), "give"},
	{regexp.MustCompile(`(?i)\b(?:administrar|prescrever|indicado|recomendado)\b`), "dar"},
	{regexp.MustCompile(`(?i)\bbody temperature\b`), "temperature"},
	{regexp.MustCompile(`(?i)\btemperatura corporal\b`), "temperatura"},
	{regexp.MustCompile(`(?i)\b(?:bowel movements?|defecation)\b`), "poop"},
	{regexp.MustCompile(`(?i)\b(?:evacuação|defecação)\b`), "cocô"},
	{regexp.MustCompile(`(?i)\burination\b`), "pee"},
	{regexp.MustCompile(`(?i)\bmicção\b`), "xixi"},
	{regexp.MustCompile(`(?i)\blactation\b`), "breastfeeding"},
	{regexp.MustCompile(`(?i)\baleitamento materno\b`), "amamentação"},
	{regexp.MustCompile(`(?i)\b(?:neonates|infants)\b`), "babies"},
	{regexp.MustCompile(`(?i)\b(?:neonate|infant)\b`), "baby"},
	{regexp.MustCompile(`(?i)\b(?:lactente|neonato)\b`), "bebê"},
	{regexp.MustCompile(`(?i)\bcephalic\b`), "head"},
	{regexp.MustCompile(`(?i)\bcefálico\b`), "da cabeça"},
	{regexp.MustCompile(`(?i)\babdominal\b`), "tummy"},
	{regexp.MustCompile(`(?i)\bdermatological\b`), "skin"},
	{regexp.MustCompile(`(?i)\bdermatológico\b`), "da pele"},
	{regexp.MustCompile(`(?i)\brespiratory\b`), "breathing"},
	{regexp.MustCompile(`(?i)\brespiratório\b`), "da respiração"},
	{regexp.MustCompile(`(?i)\bgastrointestinal\b`), "stomach"},
	{regexp.MustCompile(`(?i)\bneurological\b`), "developmental"},
	{regexp.MustCompile(`(?i)\bneurológico\b`), "do desenvolvimento"},
}

// Words that give a sentence a predicate.
var verbs = toSet(
	"is", "are", "can", "should", "must", "may", "might", "has", "have", "need", "needs",
	"help", "helps", "cause", "causes", "avoid", "avoids", "happen", "happens", "occur", "occurs",
	"recommend", "recommends", "indicate", "indicates", "keep", "give", "offer", "call", "check",
	"seek", "try", "make", "makes", "become", "becomes", "usually", "tend", "tends",
	"é", "são", "pode", "podem", "deve", "devem", "tem", "têm", "faz", "fazem", "está", "estão",
	"fica", "ficam", "acontece", "ocorre", "recomenda", "indica", "ajuda", "causa", "evita",
)

// Caregiving noun stems; a token starting with any of these counts.
var domainStems = []string{
	"baby", "babies", "bebê", "bebe", "child", "criança", "newborn", "recém-nascido", "toddler",
	"feed", "breast", "milk", "leite", "amament", "mamad", "mamar", "bottle", "formula",
	"sleep", "sono", "dorm", "nap", "soneca",
	"fever", "febre", "temperat", "diaper", "fralda", "bath", "banho",
	"cry", "cries", "choro", "chora", "colic", "cólica", "vaccin", "vacina",
	"pediatr", "doctor", "médico", "weight", "peso", "food", "aliment", "papinha",
	"rash", "assadura", "skin", "pele", "tooth", "teeth", "dent", "cough", "tosse",
	"poop", "cocô", "xixi", "hygien", "higien",
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
