package catalog

// MedicalKeywords is the whole-word vocabulary used by the keyword relevance tier.
var MedicalKeywords = []string{
	// clinical
	"patient", "clinic", "hospital", "doctor", "physician", "nurse", "medical", "medicine",
	"diagnosis", "treatment", "therapy", "therapeutic", "surgery", "surgical", "symptom",
	"disease", "disorder", "syndrome", "pathology", "condition", "illness", "ailment",
	"prognosis", "remission", "recovery", "rehabilitation", "care", "outpatient", "inpatient",
	// specialties
	"cardiology", "neurology", "oncology", "pediatrics", "geriatrics", "psychiatry",
	"orthopedics", "gynecology", "urology", "dermatology", "ophthalmology", "radiology",
	"anesthesiology", "endocrinology", "gastroenterology", "hematology", "nephrology",
	"rheumatology", "pulmonology", "immunology",
	// imaging
	"mri", "ct scan", "ultrasound", "x-ray", "radiograph", "imaging", "sonography",
	"tomography", "pet scan", "mammography", "fluoroscopy", "angiography",
	// health systems
	"healthcare", "health care", "health system", "medical record", "ehr", "emr",
	"electronic health record", "telemedicine", "telehealth", "health insurance",
	// procedures
	"biopsy", "screening", "checkup", "operation", "procedure", "intervention",
	"transplant", "dialysis", "transfusion", "injection", "implant", "prosthesis",
	// pharmaceutical
	"drug", "medication", "pharmaceutical", "prescription", "dosage", "clinical trial",
	"vaccine", "antibiotic", "antiviral", "analgesic", "sedative", "steroid",
	// biomedical
	"biomedical", "biomedicine", "biology", "physiology", "anatomy", "biochemistry",
	"molecular biology", "cell biology", "genetics", "genomics", "proteomics",
	"dna", "rna", "protein", "enzyme", "receptor", "antibody", "hormone", "gene",
	"chromosome", "mutation", "genome", "microbiome", "pathogen", "bacteria", "virus",
	// metrics
	"mortality", "morbidity", "longevity", "life expectancy", "vital sign", "blood pressure",
	"heart rate", "temperature", "respiratory rate", "oxygen saturation", "bmi",
	"body mass index", "cholesterol", "glucose", "electrolyte",
	// public health
	"public health", "epidemiology", "epidemic", "pandemic", "outbreak", "infectious disease",
	"prevention", "health policy", "sanitation", "vaccination", "immunization",
	// mental health
	"mental health", "psychology", "psychiatric", "cognitive", "behavioral",
	"depression", "anxiety", "schizophrenia", "bipolar", "counseling",
	// body systems
	"cardiovascular", "neurological", "respiratory", "digestive", "endocrine",
	"reproductive", "skeletal", "muscular", "immune", "lymphatic", "renal", "urinary",
	"heart", "brain", "lung", "liver", "kidney", "intestine", "stomach", "pancreas",
	"thyroid", "spleen", "bone", "muscle", "blood", "artery", "vein",
	// conditions
	"cancer", "diabetes", "hypertension", "stroke", "asthma", "copd", "arthritis",
	"alzheimer", "parkinson", "dementia", "infection", "inflammation", "obesity",
	"malnutrition", "allergy", "autoimmune", "genetic disease",
}

// AIKeywords pre-filters preprint-server listings down to AI/ML papers.
var AIKeywords = []string{
	"artificial intelligence", "machine learning", "deep learning",
	"neural network", "ai", "ml", "nlp", "computer vision",
	"predictive model", "data mining", "large language model", "llm",
}

// TrustedSources are source-name fragments that are always considered in-domain.
var TrustedSources = []string{
	"lancet", "nejm", "jama", "bmj", "medicalxpress", "healthtech", "healthnews",
	"healthday", "medscape", "webmd", "mayoclinic", "nih", "cdc", "who", "pubmed",
}

// NewsSearchQueries are the default keyword queries sent to the news search API.
var NewsSearchQueries = []string{
	"AI healthcare",
	"AI drug discovery",
	"AI diagnosis",
	"AI radiology",
	"AI pathology",
	"AI surgery",
	"clinical AI",
	"medical artificial intelligence",
}
