package services

import (
	"testing"

	apperrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/stretchr/testify/suite"
)

type WorkspaceServiceTestSuite struct {
	suite.Suite
	env   *testEnv
	owner *models.User
}

func (suite *WorkspaceServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.owner = suite.env.user("owner")
}

func (suite *WorkspaceServiceTestSuite) TestCreateAddsOwnerMembership() {
	workspace := suite.env.workspace(suite.owner, "acme")

	member, err := suite.env.store.Workspaces().FindMember(workspace.ID, suite.owner.ID)
	suite.Require().NoError(err)
	suite.Assert().Equal(models.WorkspaceRoleOwner, member.Role)

	// The creation is audited.
	entries, err := suite.env.store.Activity().ListByWorkspace(workspace.ID, listAll())
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
	suite.Assert().Equal(models.ActionWorkspaceCreated, entries[0].Action)
}

func (suite *WorkspaceServiceTestSuite) TestCreateRejectsDuplicateSlug() {
	suite.env.workspace(suite.owner, "acme")

	_, err := suite.env.workspaces.Create(CreateWorkspaceInput{
		Name: "Other",
		Slug: "acme",
	}, suite.owner.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrConflict)
}

func (suite *WorkspaceServiceTestSuite) TestCreateRejectsBadSlug() {
	_, err := suite.env.workspaces.Create(CreateWorkspaceInput{
		Name: "Bad",
		Slug: "Not A Slug!",
	}, suite.owner.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrValidation)
}

func (suite *WorkspaceServiceTestSuite) TestOwnerMembershipImmutable() {
	workspace := suite.env.workspace(suite.owner, "acme")
	admin := suite.env.user("admin")
	suite.env.member(workspace, admin, models.WorkspaceRoleAdmin)

	// An admin cannot touch the owner's row.
	err := suite.env.workspaces.UpdateMemberRole(workspace.ID, suite.owner.ID, models.WorkspaceRoleMember, admin.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrInvariantViolation)

	err = suite.env.workspaces.RemoveMember(workspace.ID, suite.owner.ID, admin.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrInvariantViolation)

	// Not even the owner themselves.
	err = suite.env.workspaces.UpdateMemberRole(workspace.ID, suite.owner.ID, models.WorkspaceRoleViewer, suite.owner.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrInvariantViolation)

	err = suite.env.workspaces.RemoveMember(workspace.ID, suite.owner.ID, suite.owner.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrInvariantViolation)
}

func (suite *WorkspaceServiceTestSuite) TestOwnerRoleCannotBeGranted() {
	workspace := suite.env.workspace(suite.owner, "acme")
	user := suite.env.user("user")

	_, err := suite.env.workspaces.AddMember(workspace.ID, user.ID, models.WorkspaceRoleOwner, suite.owner.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrInvariantViolation)
}

func (suite *WorkspaceServiceTestSuite) TestAddMemberTwiceConflicts() {
	workspace := suite.env.workspace(suite.owner, "acme")
	user := suite.env.user("user")
	suite.env.member(workspace, user, models.WorkspaceRoleMember)

	_, err := suite.env.workspaces.AddMember(workspace.ID, user.ID, models.WorkspaceRoleViewer, suite.owner.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrConflict)
}

func (suite *WorkspaceServiceTestSuite) TestMemberCannotManageMembers() {
	workspace := suite.env.workspace(suite.owner, "acme")
	member := suite.env.user("member")
	target := suite.env.user("target")
	suite.env.member(workspace, member, models.WorkspaceRoleMember)

	_, err := suite.env.workspaces.AddMember(workspace.ID, target.ID, models.WorkspaceRoleMember, member.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrPermissionDenied)
}

func (suite *WorkspaceServiceTestSuite) TestMemberCanLeave() {
	workspace := suite.env.workspace(suite.owner, "acme")
	member := suite.env.user("member")
	suite.env.member(workspace, member, models.WorkspaceRoleViewer)

	err := suite.env.workspaces.RemoveMember(workspace.ID, member.ID, member.ID)
	suite.Require().NoError(err)

	_, err = suite.env.store.Workspaces().FindMember(workspace.ID, member.ID)
	suite.Assert().Error(err)
}

func (suite *WorkspaceServiceTestSuite) TestRoleChangeIsAudited() {
	workspace := suite.env.workspace(suite.owner, "acme")
	member := suite.env.user("member")
	suite.env.member(workspace, member, models.WorkspaceRoleViewer)

	err := suite.env.workspaces.UpdateMemberRole(workspace.ID, member.ID, models.WorkspaceRoleAdmin, suite.owner.ID)
	suite.Require().NoError(err)

	updated, err := suite.env.store.Workspaces().FindMember(workspace.ID, member.ID)
	suite.Require().NoError(err)
	suite.Assert().Equal(models.WorkspaceRoleAdmin, updated.Role)

	entries, err := suite.env.store.Activity().ListByWorkspace(workspace.ID, listAll())
	suite.Require().NoError(err)
	suite.Assert().Equal(models.ActionMemberRoleChanged, entries[0].Action)
}

func (suite *WorkspaceServiceTestSuite) TestAdminCannotArchiveWorkspace() {
	workspace := suite.env.workspace(suite.owner, "acme")
	admin := suite.env.user("admin")
	suite.env.member(workspace, admin, models.WorkspaceRoleAdmin)

	archived := models.WorkspaceStatusArchived

	// Renaming is an admin capability.
	name := "Acme Corp"
	_, err := suite.env.workspaces.Update(workspace.ID, UpdateWorkspaceInput{Name: &name}, admin.ID)
	suite.Require().NoError(err)

	// Archiving is a settings change reserved for the owner.
	_, err = suite.env.workspaces.Update(workspace.ID, UpdateWorkspaceInput{Status: &archived}, admin.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrPermissionDenied)

	_, err = suite.env.workspaces.Update(workspace.ID, UpdateWorkspaceInput{Status: &archived}, suite.owner.ID)
	suite.Require().NoError(err)
}

func (suite *WorkspaceServiceTestSuite) TestInviteAndAccept() {
	workspace := suite.env.workspace(suite.owner, "acme")
	invitee := suite.env.user("invitee")

	invitation, err := suite.env.workspaces.InviteMember(workspace.ID, "invitee@example.com", models.WorkspaceRoleMember, suite.owner.ID)
	suite.Require().NoError(err)
	suite.Require().NotEmpty(invitation.Token)

	member, err := suite.env.workspaces.AcceptInvitation(invitation.Token, invitee.ID)
	suite.Require().NoError(err)
	suite.Assert().Equal(models.WorkspaceRoleMember, member.Role)

	// The token is single-use.
	_, err = suite.env.workspaces.AcceptInvitation(invitation.Token, invitee.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrValidation)
}

func (suite *WorkspaceServiceTestSuite) TestReinviteRevokesPreviousToken() {
	workspace := suite.env.workspace(suite.owner, "acme")
	invitee := suite.env.user("invitee")

	first, err := suite.env.workspaces.InviteMember(workspace.ID, "invitee@example.com", models.WorkspaceRoleMember, suite.owner.ID)
	suite.Require().NoError(err)

	second, err := suite.env.workspaces.InviteMember(workspace.ID, "invitee@example.com", models.WorkspaceRoleAdmin, suite.owner.ID)
	suite.Require().NoError(err)
	suite.Assert().NotEqual(first.Token, second.Token)

	// The first token no longer works.
	_, err = suite.env.workspaces.AcceptInvitation(first.Token, invitee.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrValidation)

	member, err := suite.env.workspaces.AcceptInvitation(second.Token, invitee.ID)
	suite.Require().NoError(err)
	suite.Assert().Equal(models.WorkspaceRoleAdmin, member.Role)
}

func (suite *WorkspaceServiceTestSuite) TestAcceptRejectsWrongEmail() {
	workspace := suite.env.workspace(suite.owner, "acme")
	stranger := suite.env.user("stranger")

	invitation, err := suite.env.workspaces.InviteMember(workspace.ID, "someone-else@example.com", models.WorkspaceRoleMember, suite.owner.ID)
	suite.Require().NoError(err)

	_, err = suite.env.workspaces.AcceptInvitation(invitation.Token, stranger.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrPermissionDenied)
}

func TestWorkspaceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(WorkspaceServiceTestSuite))
}
