package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/extract"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/provider"
	"sitegen-backend/internal/settings"
	"sitegen-backend/pkg/logger"
)

// Preferences supplies the user's provider choice, stored keys and backend values.
// *settings.Service implements it.
type Preferences interface {
	Get() (settings.Settings, bool)
	Credential(provider string) (string, bool)
	Auxiliary() map[string]string
}

type TurnInput struct {
	Prompt string
	// Provider overrides the provider selected in settings.
	Provider model.ProviderID
	UserID   string
}

type Success struct {
	Document model.Document
	Index    int
}

// Outcome of one user turn: exactly one of Success and Failure is set. Turn is the
// assistant turn appended to the transcript, if any.
type Outcome struct {
	Success *Success
	Failure *Failure
	Turn    *model.ConversationTurn
}

// PreviewFunc receives the document extracted so far while a generation streams.
type PreviewFunc func(model.PreviewEvent)

type GenerationService struct {
	cfg      *config.Config
	registry *provider.Registry
	prefs    Preferences
}

func NewGenerationService(cfg *config.Config, registry *provider.Registry, prefs Preferences) *GenerationService {
	return &GenerationService{
		cfg:      cfg,
		registry: registry,
		prefs:    prefs,
	}
}

type plan struct {
	provider provider.Provider
	request  model.GenerationRequest
	from     *int
}

// HandleUserTurn runs one prompt against the session: it records the user turn,
// streams the provider output through the extractor for live previews and commits
// the final document as a new version. A failure leaves the version history as it
// was. Cancelling ctx aborts the stream without adding a failure turn.
func (g *GenerationService) HandleUserTurn(ctx context.Context, sess *Session, in TurnInput, onPreview PreviewFunc) Outcome {
	if !sess.begin() {
		return Outcome{Failure: &Failure{
			Kind:    model.ErrGenerationInFlight,
			Message: friendlyMessage(model.ErrGenerationInFlight, ""),
			Err:     ErrGenerationInFlight,
		}}
	}
	defer sess.end()

	p, fail := g.prepare(sess, in)
	log := logger.WithFields(logger.Fields{
		"session_id": sess.ID,
		"provider":   p.request.Provider,
	})
	if fail != nil {
		log.Warnf("generation rejected: %v", fail.Err)
		return Outcome{Failure: fail}
	}

	sess.addTurn(model.RoleUser, in.Prompt, nil)
	sess.titleFrom(in.Prompt)

	genCtx := ctx
	if g.cfg.Generation.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, g.cfg.Generation.Timeout)
		defer cancel()
	}

	started := time.Now()
	raw, err := g.drain(genCtx, sess, p, onPreview)
	if err != nil {
		return g.fail(ctx, sess, log, err)
	}

	content := extract.Extract(raw)
	if err := extract.Validate(content); err != nil {
		return g.fail(ctx, sess, log, err)
	}
	if !extract.LooksLikeMarkup(content) {
		log.Warn("extracted document does not start with a doctype or <html>")
	}

	doc := model.Document{
		Content:            content,
		SourcePrompt:       in.Prompt,
		CreatedFromVersion: p.from,
		CreatedAt:          time.Now(),
	}
	index := sess.history.Append(doc)
	version := index + 1
	turn := sess.addTurn(model.RoleAssistant,
		fmt.Sprintf("I've updated the website and created Version %d. What's next?", version), &version)

	log.WithFields(logrus.Fields{
		"version":  version,
		"bytes":    len(content),
		"duration": time.Since(started).String(),
	}).Info("generation committed")

	return Outcome{Success: &Success{Document: doc, Index: index}, Turn: &turn}
}

// Check runs the preconditions of a turn without starting it. The returned error is
// a *Failure.
func (g *GenerationService) Check(sess *Session, in TurnInput) error {
	if _, fail := g.prepare(sess, in); fail != nil {
		return fail
	}
	return nil
}

// prepare checks the preconditions that must hold before any network call.
func (g *GenerationService) prepare(sess *Session, in TurnInput) (plan, *Failure) {
	id := g.providerFor(in.Provider)
	p := plan{request: model.GenerationRequest{Prompt: in.Prompt, Provider: id}}

	adapter, err := g.registry.Get(id)
	if err != nil {
		return p, &Failure{Kind: model.ErrUnknown, Message: friendlyMessage(model.ErrUnknown, err.Error()), Err: err}
	}
	p.provider = adapter

	p.request.Credential = g.credential(id)
	if adapter.RequiresCredential() && p.request.Credential == "" {
		err := fmt.Errorf("%w for %s", ErrMissingCredential, id)
		return p, &Failure{Kind: model.ErrMissingCredential, Message: friendlyMessage(model.ErrMissingCredential, ""), Err: err}
	}
	if g.cfg.Workspace.RequireAuth && in.UserID == "" {
		return p, &Failure{Kind: model.ErrNotAuthenticated, Message: friendlyMessage(model.ErrNotAuthenticated, ""), Err: ErrNotAuthenticated}
	}

	if doc, ok := sess.history.Current(); ok {
		base := doc.Content
		from := sess.history.Cursor() + 1
		p.request.BaseDocument = &base
		p.from = &from
	}
	if g.prefs != nil {
		p.request.AuxiliaryConfig = g.prefs.Auxiliary()
	}
	return p, nil
}

func (g *GenerationService) providerFor(requested model.ProviderID) model.ProviderID {
	if requested != "" {
		return requested
	}
	if g.prefs != nil {
		if s, _ := g.prefs.Get(); s.Provider != "" {
			return model.ProviderID(s.Provider)
		}
	}
	return model.ProviderID(g.cfg.Providers.Default)
}

// credential prefers the key stored in the vault over the configured one.
func (g *GenerationService) credential(id model.ProviderID) string {
	if g.prefs != nil {
		if key, ok := g.prefs.Credential(string(id)); ok {
			return key
		}
	}
	return provider.ConfiguredKey(g.cfg, id)
}

func (g *GenerationService) drain(ctx context.Context, sess *Session, p plan, onPreview PreviewFunc) (string, error) {
	reader, err := p.provider.Issue(ctx, p.request)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	var (
		raw      strings.Builder
		last     time.Time
		interval = g.cfg.Generation.PreviewInterval
	)
	publish := func(force bool) {
		if !force && time.Since(last) < interval {
			return
		}
		last = time.Now()
		content := extract.Extract(raw.String())
		if content == "" {
			return
		}
		sess.setLive(content)
		if onPreview != nil {
			onPreview(model.PreviewEvent{
				SessionID: sess.ID,
				Content:   content,
				RawBytes:  raw.Len(),
				Timestamp: last.UnixMilli(),
			})
		}
	}

	for {
		ev, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			return raw.String(), nil
		}
		if err != nil {
			return raw.String(), err
		}

		switch ev.Kind {
		case model.EventDelta:
			raw.WriteString(ev.Text)
			publish(false)
		case model.EventError:
			return raw.String(), ev.Err
		case model.EventDone:
			publish(true)
			return raw.String(), nil
		}
	}
}

// fail records a failed turn. ctx is the caller's context: once it is done the client
// is gone and no failure turn is added.
func (g *GenerationService) fail(ctx context.Context, sess *Session, log *logrus.Entry, err error) Outcome {
	if ctx.Err() != nil {
		log.Infof("generation cancelled: %v", err)
		return Outcome{Failure: &Failure{
			Kind:    model.ErrCancelled,
			Message: friendlyMessage(model.ErrCancelled, ""),
			Err:     ctx.Err(),
		}}
	}

	var kind model.ErrorKind
	var raw string
	if errors.Is(err, extract.ErrEmptyDocument) {
		kind, raw = model.ErrExtractionFailed, err.Error()
	} else {
		pe := provider.FromError(err)
		kind, raw = pe.Kind, pe.Message
	}

	msg := friendlyMessage(kind, raw)
	log.WithField("kind", kind).Errorf("generation failed: %v", err)

	turn := sess.addTurn(model.RoleAssistant, "Sorry, I ran into an error: "+msg, nil)
	return Outcome{
		Failure: &Failure{Kind: kind, Message: msg, Err: err},
		Turn:    &turn,
	}
}
