package sqlinline

// Generation lifecycle queries. Every transition away from 'processing' is
// guarded by the current status so concurrent writers (driver, reaper, owner
// dismissal) can never move a generation out of a terminal state.

const QInsertGeneration = `--sql 7c1f4a2e-9b3d-4e06-8a51-2f6d9c0b4e17
insert into generations (id, user_id, session_id, model_id, prompt, negative_prompt, status, metadata)
values ($1::uuid, $2::uuid, $3::uuid, $4::text, $5::text, $6::text, 'pending', '{}'::jsonb);
`

const QSelectGenerationForUser = `--sql 3d8b60f1-5a2c-47d9-b4e8-91c7f0a25d63
select id, user_id, session_id, model_id, prompt, negative_prompt, status, cost, metadata, created_at, updated_at
from generations
where id = $1::uuid and user_id = $2::uuid;
`

const QClaimPendingGeneration = `--sql b2e94c7a-1d50-4f38-a6c2-8e03b5d71f49
with next_generation as (
    select id
    from generations
    where status = 'pending'
    order by created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update generations
    set status = 'processing', updated_at = now()
    where id in (select id from next_generation)
    returning id, user_id, session_id, model_id, prompt, negative_prompt, metadata, created_at
)
select * from claimed;
`

const QCompleteGeneration = `--sql 58a3d1c9-7e2f-40b6-9d14-c5f82a06e3b7
update generations
set status = 'completed',
    cost = $2::numeric,
    metadata = metadata || $3::jsonb,
    updated_at = now()
where id = $1::uuid and status = 'processing';
`

const QFailGeneration = `--sql e91b57d3-0c4a-4f82-b6e9-3a7d20c816f5
update generations
set status = 'failed',
    metadata = metadata || $2::jsonb,
    updated_at = now()
where id = $1::uuid and status = 'processing';
`

const QDismissGeneration = `--sql 16f0c8b4-2a9e-4d57-8c31-d94e6b507a28
update generations
set status = 'dismissed',
    updated_at = now()
where id = $1::uuid and user_id = $2::uuid and status = 'processing';
`

const QMergeGenerationMetadata = `--sql a47e2d90-6b1f-4c35-92a8-0e5c38d7f612
update generations
set metadata = metadata || $2::jsonb
where id = $1::uuid;
`

const QSelectGenerationDebugTrail = `--sql c05a9e31-8d47-4b2f-a1c6-74f0b28e5d93
select coalesce(metadata->'debug_logs', '[]'::jsonb)
from generations
where id = $1::uuid;
`

const QSetGenerationDebugTrail = `--sql f3821b6d-4e0a-49c7-b583-1a9d62e4c0f8
update generations
set metadata = jsonb_set(
    jsonb_set(metadata, '{debug_logs}', $2::jsonb, true),
    '{last_step}', to_jsonb($3::text), true
)
where id = $1::uuid;
`

const QSelectStuckCandidates = `--sql 9d64f0a2-3c8b-4751-9e2d-b07c51a8e364
select id, user_id, metadata, created_at
from generations
where status = 'processing'
  and created_at < now() - make_interval(secs => $1::double precision)
order by created_at asc;
`

const QSelectOwnProcessingOlderThan = `--sql 2b7c5e18-f9a0-4d63-81b4-6c3f90d2a5e7
select id, status, model_id, prompt, created_at
from generations
where user_id = $1::uuid
  and status = 'processing'
  and created_at < now() - make_interval(secs => $2::double precision)
order by created_at desc
limit $3::int;
`
