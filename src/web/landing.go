package web

type heroSection struct {
	Title    string
	Subtitle string
	Action   string
	Link     string
}

type feature struct {
	Title string
	Text  string
}

type plan struct {
	Name     string
	Price    string
	Text     string
	Features []string
}

var hero = heroSection{
	Title:    "Brain tumor detection from a single MRI scan",
	Subtitle: "Upload a scan and get a classification with per-class probabilities in seconds.",
	Action:   "Try a prediction",
	Link:     "/prediction",
}

var benefits = []feature{
	{Title: "Fast results", Text: "A prediction takes seconds, not days."},
	{Title: "Four classes", Text: "Glioma, meningioma, pituitary tumors and scans without a tumor."},
	{Title: "Transparent", Text: "Every result comes with the model's confidence and the probability of each class."},
	{Title: "Private", Text: "Uploaded scans are kept only while you look at them."},
}

var services = []feature{
	{Title: "Classification", Text: "Detects whether a tumor is present and which type it most likely is."},
	{Title: "Reports", Text: "Plain-text reports that can be attached to a case."},
	{Title: "Statistics", Text: "Aggregated numbers over all predictions made so far."},
}

var plans = []plan{
	{Name: "Basic", Price: "Free", Text: "For trying things out.", Features: []string{"Single image predictions", "Class probabilities"}},
	{Name: "Clinic", Price: "$99/month", Text: "For small practices.", Features: []string{"Unlimited predictions", "Reports", "Prediction history"}},
	{Name: "Hospital", Price: "Contact us", Text: "For large deployments.", Features: []string{"Dedicated prediction service", "Statistics", "Priority support"}},
}
