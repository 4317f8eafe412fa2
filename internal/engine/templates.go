package engine

import "math/rand"

// DM templates, keyed by what we know about the target. Placeholders
// are intentionally absent; the advisory model supplies personalization
// when it is available.
var (
	dmNoWebsite = []string{
		"Hey! Came across your page and love what you're doing. Noticed you don't have a website yet - a simple one could bring you a lot more customers. We build them fast and affordable, unlimited revisions included. Want to hear more? 🚀",
		"Hi! Your content caught my eye. I noticed there's no website linked on your profile - these days that's where most people check before buying. We design modern, mobile-friendly sites in just a few days. Interested?",
		"Hello! Really like your page. Quick question - have you thought about getting a website? It makes a huge difference for small businesses. We can get one live for you within a week, and revisions are unlimited. 😊",
	}
	dmWithWebsite = []string{
		"Hey! Checked out your page and your website. You have a great foundation - we could take it to the next level with a modern redesign or automation (chatbots, email flows) that saves you hours every week. Want to hear more?",
		"Hi! Love what you're building. I took a look at your site - have you considered adding an AI chatbot for customer questions? It answers 24/7 so you don't have to. We set these up in a few days. Interested? 🤖",
		"Hello! Your business looks great. We help companies like yours automate the boring parts - bookings, emails, support. Most of our clients save hours every week. Happy to share some examples if you're curious!",
	}
	dmGeneral = []string{
		"Hey! Came across your profile and really like what you're doing. We help small businesses grow their online presence - websites, automation, chatbots. Would love to show you what's possible. 😊",
		"Hi! Your page stood out to me. We work with businesses like yours on websites and automation - fast turnaround, unlimited revisions. Want me to send some examples?",
	}
)

// PickDM returns a template suited to what the profile showed.
func PickDM(hasWebsite bool) string {
	pool := dmNoWebsite
	if hasWebsite {
		pool = dmWithWebsite
	}
	// Mix in a general opener occasionally so threads do not all read
	// the same.
	if rand.Intn(4) == 0 {
		pool = dmGeneral
	}
	return pool[rand.Intn(len(pool))]
}

// commentTemplates are the fallback phrases used when the advisory
// model is unavailable or returns something promotional. Generic on
// purpose: they must be safe on any post.
var commentTemplates = []string{
	"Love this! 🔥",
	"This is great content 👏",
	"Really well said!",
	"Couldn't agree more",
	"This is so true",
	"Great insight! 💡",
	"Needed to see this today",
	"Solid advice 👌",
	"This deserves more attention",
	"Quality content as always",
	"Interesting perspective!",
	"Well put 👏",
	"Facts! 💯",
	"This resonates",
	"Saving this one",
	"Great point about consistency",
	"The detail here is impressive",
	"More people need to hear this",
	"Nicely done! 🙌",
	"Strong work 💪",
}

// PickComment returns a random fallback comment.
func PickComment() string {
	return commentTemplates[rand.Intn(len(commentTemplates))]
}

// Closers appended to an advisory-personalized DM intro. The intro
// covers who they are; the closer covers what we do.
const (
	closerNoWebsite   = "\n\nWe build modern, mobile-friendly websites in 3-5 days with unlimited revisions. Would you be open to seeing some examples? 🚀"
	closerWithWebsite = "\n\nWe help businesses like yours with redesigns and automation (chatbots, email flows) that save hours every week. Open to a quick look at what's possible?"
)

// ComposeDM builds the outgoing message from an optional personalized
// intro. An empty intro falls back to the full template.
func ComposeDM(personalizedIntro string, hasWebsite bool) string {
	if personalizedIntro == "" {
		return PickDM(hasWebsite)
	}
	if hasWebsite {
		return personalizedIntro + closerWithWebsite
	}
	return personalizedIntro + closerNoWebsite
}
