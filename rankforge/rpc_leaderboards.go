package rankforge

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

// RpcId is the registered name of a server RPC exposed by this module.
type RpcId string

const (
	RpcIdLeaderboardsUpdate    RpcId = "leaderboards_update"
	RpcIdLeaderboardsCalculate RpcId = "leaderboards_calculate"
	RpcIdLeaderboardsRank      RpcId = "leaderboards_rank"
	RpcIdLeaderboardsList      RpcId = "leaderboards_list"
	RpcIdLeaderboardsListAsc   RpcId = "leaderboards_list_asc"
	RpcIdLeaderboardsListRanks RpcId = "leaderboards_list_ranks"
	RpcIdLeaderboardsAddUser   RpcId = "leaderboards_add_user"
)

func (id RpcId) String() string {
	return string(id)
}

type LeaderboardUpdateRequest struct {
	ID           string     `json:"id"`
	CategoryName string     `json:"category_name"`
	Points       int64      `json:"points"`
	Time         *time.Time `json:"time,omitempty"`
}

type LeaderboardUpdateResponse struct {
	Applied bool `json:"applied"`
}

type LeaderboardCalculateRequest struct {
	ID         string   `json:"id"`
	Categories []string `json:"categories,omitempty"`
}

type LeaderboardRankRequest struct {
	ID           string         `json:"id"`
	EntryID      string         `json:"entry_id,omitempty"`
	CategoryName string         `json:"category_name"`
	Kind         ScoreboardKind `json:"kind,omitempty"`
}

type LeaderboardRankResponse struct {
	Rank int `json:"rank"`
}

type LeaderboardListRequest struct {
	ID           string         `json:"id"`
	CategoryName string         `json:"category_name"`
	Kind         ScoreboardKind `json:"kind,omitempty"`
	Start        int            `json:"start,omitempty"`
	Rank         int            `json:"rank,omitempty"`
	Count        int            `json:"count"`
}

type LeaderboardListResponse struct {
	Scores []Score `json:"scores"`
}

type LeaderboardAddUserRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	TeamName    string `json:"team_name,omitempty"`
	GuildName   string `json:"guild_name,omitempty"`
}

func registerLeaderboardsRpc(initializer runtime.Initializer, r *rankforgeImpl) error {
	if err := initializer.RegisterRpc(RpcIdLeaderboardsUpdate.String(), rpcLeaderboardsUpdate(r)); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcIdLeaderboardsCalculate.String(), rpcLeaderboardsCalculate(r)); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcIdLeaderboardsRank.String(), rpcLeaderboardsRank(r)); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcIdLeaderboardsList.String(), rpcLeaderboardsList(r)); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcIdLeaderboardsListAsc.String(), rpcLeaderboardsListAsc(r)); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcIdLeaderboardsListRanks.String(), rpcLeaderboardsListRanks(r)); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcIdLeaderboardsAddUser.String(), rpcLeaderboardsAddUser(r)); err != nil {
		return err
	}
	return nil
}

func sessionUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return "", ErrNoSessionUser
	}
	return userID, nil
}

func (r *LeaderboardListRequest) kind() ScoreboardKind {
	if r.Kind == "" {
		return ScoreboardUser
	}
	return r.Kind
}

func rpcLeaderboardsUpdate(r *rankforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		system := r.GetLeaderboardsSystem()
		if system == nil {
			return "", ErrSystemNotAvailable
		}
		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}
		if payload == "" {
			return "", ErrPayloadEmpty
		}

		var req LeaderboardUpdateRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal LeaderboardUpdateRequest: %v", err)
			return "", ErrPayloadDecode
		}

		applied, err := system.Update(ctx, logger, req.ID, userID, Recordable{
			CategoryName: req.CategoryName,
			Points:       req.Points,
			Time:         req.Time,
		})
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(&LeaderboardUpdateResponse{Applied: applied})
		if err != nil {
			logger.Error("Failed to marshal LeaderboardUpdateResponse: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

func rpcLeaderboardsCalculate(r *rankforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		system := r.GetLeaderboardsSystem()
		if system == nil {
			return "", ErrSystemNotAvailable
		}

		if payload == "" {
			return "", ErrPayloadEmpty
		}

		var req LeaderboardCalculateRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal LeaderboardCalculateRequest: %v", err)
			return "", ErrPayloadDecode
		}

		system.Calculate(logger, req.ID, req.Categories...)
		return "{}", nil
	}
}

func rpcLeaderboardsRank(r *rankforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		system := r.GetLeaderboardsSystem()
		if system == nil {
			return "", ErrSystemNotAvailable
		}
		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}
		if payload == "" {
			return "", ErrPayloadEmpty
		}

		var req LeaderboardRankRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal LeaderboardRankRequest: %v", err)
			return "", ErrPayloadDecode
		}

		entryID := req.EntryID
		if entryID == "" {
			entryID = userID
		}
		kind := req.Kind
		if kind == "" {
			kind = ScoreboardUser
		}

		rank := system.Rank(logger, req.ID, entryID, req.CategoryName, kind)
		data, err := json.Marshal(&LeaderboardRankResponse{Rank: rank})
		if err != nil {
			logger.Error("Failed to marshal LeaderboardRankResponse: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

func rpcLeaderboardsList(r *rankforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		system := r.GetLeaderboardsSystem()
		if system == nil {
			return "", ErrSystemNotAvailable
		}
		if payload == "" {
			return "", ErrPayloadEmpty
		}

		var req LeaderboardListRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal LeaderboardListRequest: %v", err)
			return "", ErrPayloadDecode
		}

		scores, err := system.ListDescending(logger, req.ID, req.CategoryName, req.kind(), req.Start, req.Count)
		if err != nil {
			return "", err
		}
		return marshalListResponse(logger, scores)
	}
}

func rpcLeaderboardsListAsc(r *rankforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		system := r.GetLeaderboardsSystem()
		if system == nil {
			return "", ErrSystemNotAvailable
		}
		if payload == "" {
			return "", ErrPayloadEmpty
		}

		var req LeaderboardListRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal LeaderboardListRequest: %v", err)
			return "", ErrPayloadDecode
		}

		scores, err := system.ListAscending(logger, req.ID, req.CategoryName, req.kind(), req.Rank, req.Count)
		if err != nil {
			return "", err
		}
		return marshalListResponse(logger, scores)
	}
}

func rpcLeaderboardsListRanks(r *rankforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		system := r.GetLeaderboardsSystem()
		if system == nil {
			return "", ErrSystemNotAvailable
		}
		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}
		if payload == "" {
			return "", ErrPayloadEmpty
		}

		var req LeaderboardListRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal LeaderboardListRequest: %v", err)
			return "", ErrPayloadDecode
		}

		scores, err := system.ListRanks(logger, req.ID, req.CategoryName, req.kind(), userID, req.Count)
		if err != nil {
			return "", err
		}
		return marshalListResponse(logger, scores)
	}
}

func rpcLeaderboardsAddUser(r *rankforgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		system := r.GetLeaderboardsSystem()
		if system == nil {
			return "", ErrSystemNotAvailable
		}
		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}
		if payload == "" {
			return "", ErrPayloadEmpty
		}

		var req LeaderboardAddUserRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal LeaderboardAddUserRequest: %v", err)
			return "", ErrPayloadDecode
		}

		if err := system.AddUser(logger, req.ID, &User{
			ID:          userID,
			DisplayName: req.DisplayName,
			TeamName:    req.TeamName,
			GuildName:   req.GuildName,
		}); err != nil {
			return "", err
		}
		return "{}", nil
	}
}

func marshalListResponse(logger runtime.Logger, scores []Score) (string, error) {
	data, err := json.Marshal(&LeaderboardListResponse{Scores: scores})
	if err != nil {
		logger.Error("Failed to marshal LeaderboardListResponse: %v", err)
		return "", ErrPayloadEncode
	}
	return string(data), nil
}
