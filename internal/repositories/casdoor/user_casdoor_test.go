package casdoor

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
)

type fakeSource struct {
	users map[string]*casdoorsdk.User
	calls int
	err   error
}

func (f *fakeSource) GetUserByUserId(id string) (*casdoorsdk.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func TestConvertUser_Profile(t *testing.T) {
	user := ConvertUser(&casdoorsdk.User{
		Id:          "u-1",
		DisplayName: "Linh",
		Email:       "linh@example.com",
		Avatar:      "https://cdn.example.com/a.png",
		Roles:       []*casdoorsdk.Role{{Name: "student"}},
		Properties: map[string]string{
			PropCurrentLevel:        "B1",
			PropStudyHoursPerWeek:   "6",
			PropLearningGoals:       "IELTS 6.5",
			PropLearningPreferences: `["listening","flashcards"]`,
			PropStudyMethods:        "shadowing, spaced repetition",
		},
	})

	require.NotNil(t, user)
	assert.Equal(t, models.RoleLearner, user.Role)
	assert.Equal(t, "B1", user.CurrentLevel)
	assert.Equal(t, 6, user.StudyHoursPerWeek)
	assert.Equal(t, "IELTS 6.5", user.LearningGoals)
	assert.Equal(t, []string{"listening", "flashcards"}, user.LearningPreferences)
	assert.Equal(t, []string{"shadowing", "spaced repetition"}, user.StudyMethods)
	require.NotNil(t, user.AvatarURL)
}

func TestConvertUser_Roles(t *testing.T) {
	tests := []struct {
		name string
		user *casdoorsdk.User
		want models.UserRole
	}{
		{"no roles", &casdoorsdk.User{}, models.RoleLearner},
		{"instructor", &casdoorsdk.User{Roles: []*casdoorsdk.Role{{Name: "Instructor"}}}, models.RoleTeacher},
		{"admin flag", &casdoorsdk.User{IsAdmin: true, Roles: []*casdoorsdk.Role{{Name: "teacher"}}}, models.RoleAdmin},
		{"teacher beats learner", &casdoorsdk.User{Roles: []*casdoorsdk.Role{{Name: "student"}, {Name: "teacher"}}}, models.RoleTeacher},
		{"type fallback", &casdoorsdk.User{Type: "teacher"}, models.RoleTeacher},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConvertUser(tt.user).Role)
		})
	}
}

func TestUserCasdoor_GetByIDCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	source := &fakeSource{users: map[string]*casdoorsdk.User{
		"u-1": {Id: "u-1", Email: "a@example.com", Roles: []*casdoorsdk.Role{{Name: "teacher"}}},
	}}
	repo := newUserCasdoor(source, client)

	ctx := context.Background()
	first, err := repo.GetByID(ctx, "u-1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "u-1")
	require.NoError(t, err)

	assert.Equal(t, first.Email, second.Email)
	assert.Equal(t, 1, source.calls)

	ok, err := repo.HasRole(ctx, "u-1", models.RoleTeacher)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserCasdoor_GetByIDMissing(t *testing.T) {
	repo := newUserCasdoor(&fakeSource{users: map[string]*casdoorsdk.User{}}, nil)

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.True(t, repositories.IsNotFoundError(err))
}

func TestUserCasdoor_GetByIDUpstreamError(t *testing.T) {
	repo := newUserCasdoor(&fakeSource{err: errors.New("dial tcp: refused")}, nil)

	_, err := repo.GetByID(context.Background(), "u-1")
	require.Error(t, err)
	assert.False(t, repositories.IsNotFoundError(err))
}
