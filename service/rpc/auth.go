package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
)

var (
	// ErrNotAllowed means the agent holds the shared secret but is not on the allow-list yet.
	ErrNotAllowed      = errors.New("agent not in allow-list")
	ErrUnauthenticated = errors.New("agent authentication failed")
	ErrNotApproved     = errors.New("agent not approved")
	ErrUnknownAgent    = errors.New("agent not found")
)

// Register admits an agent whose uuid is allow-listed and whose secret hash
// matches sha256(shared_secret). Unlisted agents are parked as pending.
func (h *AgentHandler) Register(ctx context.Context, req *model.AgentRegisterRequest) (*model.AgentRegisterResponse, error) {
	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	log := h.log.With(zap.String("agent_id", req.UUID), zap.String("name", req.Name))
	now := h.clock.Now()

	if !allowed(settings, req.UUID) {
		if err := h.store.RecordPendingAgent(ctx, req.UUID, req.Name, req.SecretHash, now); err != nil {
			return nil, err
		}
		log.Info("registration parked, uuid not allow-listed")
		return nil, ErrNotAllowed
	}
	if !secretHashMatches(settings, req.SecretHash) {
		log.Warn("registration rejected, secret hash mismatch")
		return nil, ErrUnauthenticated
	}

	agent := &model.Agent{
		ID:         req.UUID,
		Name:       req.Name,
		SecretHash: strings.ToLower(req.SecretHash),
		Approved:   true,
		LastSeen:   &now,
	}
	if err := h.store.UpsertAgent(ctx, agent); err != nil {
		return nil, err
	}
	log.Info("agent registered")
	return &model.AgentRegisterResponse{AgentID: agent.ID}, nil
}

// Authenticate checks a plain secret sent by a registered agent.
func (h *AgentHandler) Authenticate(ctx context.Context, agentID, secret string) (*model.Agent, error) {
	agent, err := h.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	if secret == "" || !utils.SecureCompare(utils.SHA256Hex(secret), agent.SecretHash) {
		return nil, ErrUnauthenticated
	}
	if !agent.Approved {
		return nil, ErrNotApproved
	}
	return agent, nil
}

func allowed(settings model.Settings, uuid string) bool {
	for _, id := range settings.List(model.SettingAllowedAgentUUIDs) {
		if strings.EqualFold(id, uuid) {
			return true
		}
	}
	return false
}

func secretHashMatches(settings model.Settings, hash string) bool {
	shared := settings.String(model.SettingSharedSecret)
	if shared == "" || hash == "" {
		return false
	}
	return utils.SecureCompare(utils.SHA256Hex(shared), hash)
}
