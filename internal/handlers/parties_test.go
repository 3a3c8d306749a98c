package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/internal/handlers/testutil"
)

type slotView struct {
	ID         string `json:"id"`
	Number     int    `json:"slot_number"`
	Role       string `json:"role"`
	OccupantID string `json:"occupant_application_id"`
}

type postView struct {
	ID       string     `json:"id"`
	OwnerID  string     `json:"owner_id"`
	Title    string     `json:"title"`
	Status   string     `json:"status"`
	JoinType string     `json:"join_type"`
	Slots    []slotView `json:"slots"`
}

type applicationView struct {
	ID          string `json:"id"`
	PostID      string `json:"post_id"`
	SlotID      string `json:"slot_id"`
	ApplicantID string `json:"applicant_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
}

type occupancyView struct {
	Slot          slotView `json:"slot"`
	State         string   `json:"state"`
	ApplicationID string   `json:"application_id"`
	PendingCount  int      `json:"pending_count"`
}

type postDetailView struct {
	postView
	Occupancy    []occupancyView `json:"occupancy"`
	PendingCount int             `json:"pending_count"`
	OpenSlots    int             `json:"open_slots"`
}

func createPartyBody(roles ...string) map[string]any {
	slots := make([]map[string]any, 0, len(roles))
	for _, role := range roles {
		slots = append(slots, map[string]any{"role": role})
	}
	return map[string]any{
		"title":        "Sanctuary weekly",
		"description":  "Fast clear, know the mechanics",
		"dungeon_type": "sanctuary",
		"dungeon_name": "Temple of Dawn",
		"schedule":     map[string]any{"is_immediate": true},
		"slots":        slots,
	}
}

func createParty(t *testing.T, env *testutil.Env, owner testutil.User, body map[string]any) postView {
	t.Helper()
	var post postView
	testutil.MustSucceed(env, env.Request(http.MethodPost, "/api/parties", body, owner.Token), http.StatusCreated, &post)
	return post
}

func getParty(t *testing.T, env *testutil.Env, user testutil.User, postID string) postDetailView {
	t.Helper()
	var detail postDetailView
	testutil.MustSucceed(env, env.Request(http.MethodGet, "/api/parties/"+postID, nil, user.Token), http.StatusOK, &detail)
	return detail
}

func TestCreatePartyRequiresAuthentication(t *testing.T) {
	env := testutil.NewEnv(t)
	w := env.Request(http.MethodPost, "/api/parties", createPartyBody("Healer"), "")
	testutil.MustFail(env, w, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestCreateAndGetParty(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.NewUser("owner")

	post := createParty(t, env, owner, createPartyBody("Tank", "Healer", "DPS"))
	require.Equal(t, owner.ID, post.OwnerID)
	require.Equal(t, "recruiting", post.Status)
	require.Equal(t, "approval", post.JoinType)
	require.Len(t, post.Slots, 3)
	require.Equal(t, "Healer", post.Slots[1].Role)

	viewer := env.NewUser("viewer")
	detail := getParty(t, env, viewer, post.ID)
	require.Equal(t, 3, detail.OpenSlots)
	require.Zero(t, detail.PendingCount)
	require.Len(t, detail.Occupancy, 3)
	for _, occ := range detail.Occupancy {
		require.Equal(t, "open", occ.State)
	}
}

func TestCreatePartyValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.NewUser("owner")

	cases := map[string]map[string]any{
		"missing title": func() map[string]any {
			b := createPartyBody("Healer")
			delete(b, "title")
			return b
		}(),
		"unknown dungeon type": func() map[string]any {
			b := createPartyBody("Healer")
			b["dungeon_type"] = "casino"
			return b
		}(),
		"no slots":       createPartyBody(),
		"blank role":     createPartyBody(""),
		"too many slots": createPartyBody("a", "b", "c", "d", "e", "f", "g", "h", "i"),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := env.Request(http.MethodPost, "/api/parties", body, owner.Token)
			testutil.MustFail(env, w, http.StatusBadRequest, "BAD_REQUEST")
		})
	}
}

func TestGetUnknownPartyIsNotFound(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.NewUser("user")
	w := env.Request(http.MethodGet, "/api/parties/00000000-0000-0000-0000-000000000000", nil, user.Token)
	testutil.MustFail(env, w, http.StatusNotFound, "PARTY_NOT_FOUND")
}

func TestListPartiesPagesNewestFirst(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.NewUser("owner")

	var created []postView
	for i := 0; i < 3; i++ {
		created = append(created, createParty(t, env, owner, createPartyBody("Healer")))
	}
	pvp := createPartyBody("Striker")
	pvp["dungeon_type"] = "pvp"
	createParty(t, env, owner, pvp)

	w := env.Request(http.MethodGet, "/api/parties?dungeon_type=sanctuary&limit=2", nil, owner.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	var first []postView
	testutil.DecodeInto(t, resp.Data, &first)
	require.Len(t, first, 2)
	require.NotNil(t, resp.Meta)
	require.NotEmpty(t, resp.Meta.NextCursor)

	w = env.Request(http.MethodGet, "/api/parties?dungeon_type=sanctuary&limit=2&cursor="+resp.Meta.NextCursor, nil, owner.Token)
	resp = testutil.DecodeResponse(t, w)
	var second []postView
	testutil.DecodeInto(t, resp.Data, &second)
	require.Len(t, second, 1)

	seen := map[string]bool{}
	for _, p := range append(first, second...) {
		seen[p.ID] = true
	}
	for _, p := range created {
		require.True(t, seen[p.ID])
	}
}

func TestUpdatePartyIsOwnerOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.NewUser("owner")
	stranger := env.NewUser("stranger")
	post := createParty(t, env, owner, createPartyBody("Healer"))

	w := env.Request(http.MethodPatch, "/api/parties/"+post.ID, map[string]any{"title": "Hijacked"}, stranger.Token)
	testutil.MustFail(env, w, http.StatusForbidden, "FORBIDDEN")

	var updated postView
	w = env.Request(http.MethodPatch, "/api/parties/"+post.ID, map[string]any{"title": "Sanctuary, hard mode"}, owner.Token)
	testutil.MustSucceed(env, w, http.StatusOK, &updated)
	require.Equal(t, "Sanctuary, hard mode", updated.Title)
	require.Equal(t, post.Slots[0].ID, updated.Slots[0].ID)
}

func TestCloseAndDeleteParty(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.NewUser("owner")
	applicant := env.NewUser("applicant")
	post := createParty(t, env, owner, createPartyBody("Healer"))

	app := submit(t, env, applicant, post.ID, post.Slots[0].ID)

	testutil.MustFail(env, env.Request(http.MethodPost, "/api/parties/"+post.ID+"/close", nil, applicant.Token), http.StatusForbidden, "FORBIDDEN")

	var closed postView
	testutil.MustSucceed(env, env.Request(http.MethodPost, "/api/parties/"+post.ID+"/close", nil, owner.Token), http.StatusOK, &closed)
	require.Equal(t, "closed", closed.Status)

	var mine []applicationView
	testutil.MustSucceed(env, env.Request(http.MethodGet, "/api/applications/me", nil, applicant.Token), http.StatusOK, &mine)
	require.Len(t, mine, 1)
	require.Equal(t, app.ID, mine[0].ID)
	require.Equal(t, "rejected", mine[0].Status)
	require.Equal(t, "post_closed", mine[0].Reason)

	testutil.MustFail(env, env.Request(http.MethodPost, "/api/parties/"+post.ID+"/close", nil, owner.Token), http.StatusConflict, "INVALID_TRANSITION")

	testutil.MustSucceed[map[string]bool](env, env.Request(http.MethodDelete, "/api/parties/"+post.ID, nil, owner.Token), http.StatusOK, nil)
	testutil.MustFail(env, env.Request(http.MethodGet, "/api/parties/"+post.ID, nil, owner.Token), http.StatusNotFound, "PARTY_NOT_FOUND")

	testutil.MustSucceed(env, env.Request(http.MethodGet, "/api/applications/me", nil, applicant.Token), http.StatusOK, &mine)
	require.Empty(t, mine)
}
