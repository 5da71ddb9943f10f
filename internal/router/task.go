package router

import (
	"context"

	"github.com/abdul-hamid-achik/codebridge/internal/executor"
	"github.com/abdul-hamid-achik/codebridge/internal/logging"
	"github.com/abdul-hamid-achik/codebridge/internal/memory"
)

const noOutput = "(no output)"

// runTask sends free-form text to the agent in the active project.
func (r *Router) runTask(ctx context.Context, req request, text string) (string, error) {
	conv := req.conv
	if !conv.HasProject() {
		return selectProjectPrompt, nil
	}
	log := r.log.With(logging.ConversationID(conv.ID), logging.Project(conv.Project))

	if err := r.replier.SendTyping(ctx, conv.ID); err != nil {
		log.Debug("typing indicator failed", logging.Err(err))
	}
	r.reply(ctx, conv.ID, "Executing... ["+conv.Project+"]")

	store, err := r.memory.Store(conv.ProjectPath)
	if err != nil {
		log.Warn("memory store unavailable", logging.Err(err))
		store = nil
	}

	// History is injected only into the first message of an agent session;
	// a continued session already has it.
	prompt := text
	if !conv.Continuation && store != nil {
		prompt = r.injector.BuildPrompt(ctx, store, conv.Project, text)
	}

	res := r.agent.Run(ctx, executor.Request{
		ConversationID: conv.ID,
		Prompt:         prompt,
		Dir:            conv.ProjectPath,
		ResumeHandle:   conv.AgentSession,
		Continue:       conv.Continuation,
		Model:          conv.Model,
	})

	r.setLastOutput(conv.ID, res.Output)
	r.sessions.RecordAgentSession(conv.ID, res.AgentSession)

	if store != nil {
		_, err := store.SaveEntry(context.WithoutCancel(ctx), memory.Entry{
			Project:      conv.Project,
			Task:         text,
			Summary:      res.Summary,
			FilesChanged: res.FilesChanged,
			AgentSession: res.AgentSession,
			CostUSD:      res.CostUSD,
			Model:        conv.Model,
		})
		if err != nil {
			log.Warn("save memory failed", logging.Err(err))
		}
	}

	if res.Formatted == "" {
		return noOutput, nil
	}
	return res.Formatted, nil
}
